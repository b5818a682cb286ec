package product

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a page does not expose a currency symbol.
const DefaultCurrency = "USD"

// Image is a product picture URL.
type Image struct {
	URL       string `json:"url"`
	IsPrimary bool   `json:"is_primary"`
}

// Observation is one timestamped price reading for a product.
type Observation struct {
	Amount         decimal.Decimal  `json:"amount"`
	Currency       string           `json:"currency"`
	Timestamp      time.Time        `json:"timestamp"`
	PerUnitAmount  *decimal.Decimal `json:"per_unit_amount,omitempty"`
	UnitExpression string           `json:"unit_expression,omitempty"` // e.g. "100g", "each"
}

// HasDeclaredUnitPrice reports whether the listing itself published a per-unit price.
func (o Observation) HasDeclaredUnitPrice() bool {
	return o.PerUnitAmount != nil && o.UnitExpression != ""
}

// Product is a tracked listing together with its price history.
type Product struct {
	ASIN        string     `json:"asin"`
	Title       string     `json:"title"`
	Category    string     `json:"category"`
	URL         string     `json:"url"`
	Brand       string     `json:"brand,omitempty"`
	Description string     `json:"description,omitempty"`
	Images      []Image    `json:"images"`
	History     History    `json:"price_history"`
	Attributes  Attributes `json:"attributes"`
}

// CurrentPrice returns the most recent observation.
func (p *Product) CurrentPrice() (Observation, bool) {
	return p.History.Current()
}

// PriceChange compares the two most recent observations.
func (p *Product) PriceChange() ChangeMetrics {
	return p.History.Change()
}

// AddObservation appends an observation to the history.
func (p *Product) AddObservation(o Observation) {
	p.History = append(p.History, o)
}

// PrimaryImage returns the image flagged as primary, else the first one.
func (p *Product) PrimaryImage() (Image, bool) {
	if len(p.Images) == 0 {
		return Image{}, false
	}
	for _, img := range p.Images {
		if img.IsPrimary {
			return img, true
		}
	}
	return p.Images[0], true
}

// Merge returns the freshly scraped product carrying the stored history in
// front of whatever the scrape observed.
func Merge(existing *Product, scraped Product) Product {
	if existing == nil {
		return scraped
	}
	merged := scraped
	merged.History = make(History, 0, len(existing.History)+len(scraped.History))
	merged.History = append(merged.History, existing.History...)
	merged.History = append(merged.History, scraped.History...)
	if merged.Category == "" || merged.Category == UnknownCategory {
		merged.Category = existing.Category
	}
	return merged
}

// UnknownCategory is stored when no breadcrumb could be found.
const UnknownCategory = "Unknown"

// Attribute is a single key/value pair from a product details table.
type Attribute struct {
	Key   string
	Value string
}

// Attributes keeps details-table pairs in page order.
type Attributes []Attribute

// Get returns the value stored under exactly key.
func (a Attributes) Get(key string) (string, bool) {
	for _, kv := range a {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Lookup is Get with a case-insensitive fallback.
func (a Attributes) Lookup(key string) (string, bool) {
	if v, ok := a.Get(key); ok {
		return v, true
	}
	for _, kv := range a {
		if strings.EqualFold(kv.Key, key) {
			return kv.Value, true
		}
	}
	return "", false
}

// Set replaces the value of key, or appends it.
func (a *Attributes) Set(key, value string) {
	for i := range *a {
		if (*a)[i].Key == key {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Attribute{Key: key, Value: value})
}

// MarshalJSON writes the attributes as a JSON object, preserving order.
func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping the key order of the document.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*a = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("attributes: expected a JSON object")
	}
	out := Attributes{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return err
		}
		out = append(out, Attribute{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*a = out
	return nil
}
