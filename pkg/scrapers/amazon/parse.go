package amazon

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/sw33tLie/pricescope/pkg/product"
)

const unknownTitle = "Unknown Title"

var (
	nonPriceChars = regexp.MustCompile(`[^\d.]`)
	perUnitRegex  = regexp.MustCompile(`([\d,.]+)\s*/\s*([^\s)]+)`)
	byRegex       = regexp.MustCompile(`(?i)^(?:.*\s)?by\s+(.+?)$`)
	visitRegex    = regexp.MustCompile(`(?i)^visit the\s+(.+?)\s+store$`)
	brandRegex    = regexp.MustCompile(`(?i)^brand:\s*(.+)$`)
)

var currencySymbols = map[string]string{
	"$":   "USD",
	"US$": "USD",
	"£":   "GBP",
	"€":   "EUR",
	"¥":   "JPY",
	"₹":   "INR",
	"C$":  "CAD",
	"CA$": "CAD",
	"A$":  "AUD",
}

// CurrencyCode maps a price symbol to its ISO code. Unknown symbols are
// returned unchanged and an empty symbol means USD.
func CurrencyCode(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return product.DefaultCurrency
	}
	if code, ok := currencySymbols[symbol]; ok {
		return code
	}
	return symbol
}

func parsePrice(doc *goquery.Document, now time.Time) (product.Observation, error) {
	whole := strings.TrimSpace(doc.Find("span.a-price-whole").First().Text())
	fraction := strings.TrimSpace(doc.Find("span.a-price-fraction").First().Text())
	if whole == "" || fraction == "" {
		return product.Observation{}, ErrNoPrice
	}

	wholeDigits := strings.TrimRight(nonPriceChars.ReplaceAllString(whole, ""), ".")
	fractionDigits := strings.Trim(nonPriceChars.ReplaceAllString(fraction, ""), ".")
	digits := wholeDigits + "." + fractionDigits
	amount, err := decimal.NewFromString(digits)
	if err != nil {
		return product.Observation{}, err
	}

	o := product.Observation{
		Amount:    amount,
		Currency:  CurrencyCode(doc.Find("span.a-price-symbol").First().Text()),
		Timestamp: now.UTC(),
	}

	perUnitText := strings.TrimSpace(doc.Find("span.a-size-small.a-color-price").First().Text())
	if strings.Contains(perUnitText, "/") {
		if m := perUnitRegex.FindStringSubmatch(perUnitText); m != nil {
			if v, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "")); err == nil {
				o.PerUnitAmount = &v
				o.UnitExpression = m[2]
			}
		}
	}
	return o, nil
}

func parseTitle(doc *goquery.Document, htmlTitle string) string {
	if t := cleanText(doc.Find("#productTitle").First().Text()); t != "" {
		return t
	}
	if htmlTitle != "" {
		return htmlTitle
	}
	return unknownTitle
}

func parseBrand(doc *goquery.Document) string {
	text := cleanText(doc.Find("#bylineInfo").First().Text())
	if text == "" {
		return ""
	}
	for _, re := range []*regexp.Regexp{visitRegex, brandRegex, byRegex} {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return text
}

// parseCategory returns the deepest breadcrumb.
func parseCategory(doc *goquery.Document) string {
	crumbs := doc.Find("#wayfinding-breadcrumbs_feature_div ul li")
	for i := crumbs.Length() - 1; i >= 0; i-- {
		text := cleanText(crumbs.Eq(i).Text())
		if text != "" && text != "›" {
			return text
		}
	}
	return product.UnknownCategory
}

func parseImages(doc *goquery.Document) []product.Image {
	var images []product.Image
	doc.Find("img.a-dynamic-image").Each(func(_ int, img *goquery.Selection) {
		src := imageURL(img)
		if src == "" {
			return
		}
		images = append(images, product.Image{URL: src, IsPrimary: len(images) == 0})
	})
	if len(images) > 0 {
		return images
	}

	for _, sel := range []string{"#landingImage", "#imgBlkFront"} {
		if src := imageURL(doc.Find(sel).First()); src != "" {
			return []product.Image{{URL: src, IsPrimary: true}}
		}
	}
	return nil
}

// imageURL prefers src and falls back to the largest entry of the
// data-a-dynamic-image map ({"url": [width, height], ...}).
func imageURL(img *goquery.Selection) string {
	if src, ok := img.Attr("src"); ok && src != "" && !strings.HasPrefix(src, "data:") {
		return src
	}
	dynamic, ok := img.Attr("data-a-dynamic-image")
	if !ok || !gjson.Valid(dynamic) {
		return ""
	}
	var (
		best string
		area int64
	)
	gjson.Parse(dynamic).ForEach(func(key, value gjson.Result) bool {
		dims := value.Array()
		if len(dims) == 2 {
			if a := dims[0].Int() * dims[1].Int(); best == "" || a > area {
				best, area = key.String(), a
			}
		}
		return true
	})
	return best
}

// parseDetails collects the product detail tables. Keys are lowercased.
func parseDetails(doc *goquery.Document) product.Attributes {
	var attrs product.Attributes

	rows := doc.Find("table.a-keyvalue tr")
	if rows.Length() == 0 {
		rows = doc.Find("div.a-section.a-spacing-small table tr")
	}
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		key := detailKey(cells.Eq(0).Text())
		value := cleanText(cells.Eq(1).Text())
		if key != "" {
			attrs.Set(key, value)
		}
	})

	doc.Find("div.a-section.a-spacing-small > div.a-row").Each(func(_ int, row *goquery.Selection) {
		label := row.Find("span.a-text-bold").First()
		if label.Length() == 0 {
			return
		}
		labelText := label.Text()
		key := detailKey(labelText)
		value := cleanText(strings.Replace(row.Text(), labelText, "", 1))
		if key != "" && value != "" {
			attrs.Set(key, value)
		}
	})
	return attrs
}

func detailKey(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimRight(cleanText(s), ":")))
}

// cleanText collapses whitespace and drops bidi marks Amazon sprinkles in tables.
func cleanText(s string) string {
	s = strings.NewReplacer("\u200e", "", "\u200f", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
