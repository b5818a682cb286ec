package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/internal/utils"
	"github.com/sw33tLie/pricescope/pkg/product"
	"github.com/sw33tLie/pricescope/pkg/whttp"
)

// Slack block kit types, limited to what the messages use.
type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackElement struct {
	Type string    `json:"type"`
	Text slackText `json:"text"`
	URL  string    `json:"url,omitempty"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
	ImageURL string         `json:"image_url,omitempty"`
	AltText  string         `json:"alt_text,omitempty"`
}

type slackPayload struct {
	Channel  string       `json:"channel,omitempty"`
	Username string       `json:"username,omitempty"`
	Blocks   []slackBlock `json:"blocks"`
}

// Slack posts block messages to an incoming webhook.
type Slack struct {
	cfg    config.Slack
	client *retryablehttp.Client
}

func NewSlack(cfg config.Slack, timeout time.Duration, retries int) *Slack {
	return &Slack{cfg: cfg, client: whttp.NewClient(timeout, retries)}
}

func (s *Slack) Name() string {
	return "slack"
}

func arrow(decrease bool) string {
	if decrease {
		return ":arrow_down:"
	}
	return ":arrow_up:"
}

func plain(text string) *slackText {
	return &slackText{Type: "plain_text", Text: text, Emoji: true}
}

func mrkdwn(text string) *slackText {
	return &slackText{Type: "mrkdwn", Text: text}
}

func (s *Slack) NotifyPriceChange(ctx context.Context, p product.Product, change product.ChangeMetrics) error {
	a, err := newAlert(p, change)
	if err != nil {
		return err
	}

	blocks := []slackBlock{
		{Type: "header", Text: plain(fmt.Sprintf("Price %s for %s", a.Direction, p.Title))},
	}
	if a.ImageURL != "" {
		blocks = append(blocks, slackBlock{Type: "image", ImageURL: a.ImageURL, AltText: p.Title})
	}
	blocks = append(blocks,
		slackBlock{Type: "section", Text: mrkdwn(fmt.Sprintf("*Price Change %s*\nPrevious price: %s %s\nCurrent price: %s %s\nChange: %s %s (%s%%)",
			arrow(a.Decrease), a.Currency, a.Previous, a.Currency, a.Current, a.Currency, a.Absolute, a.Percentage))},
		slackBlock{Type: "section", Fields: []slackText{
			*mrkdwn("*ASIN:*\n" + p.ASIN),
			*mrkdwn("*Category:*\n" + p.Category),
		}},
		slackBlock{Type: "actions", Elements: []slackElement{
			{Type: "button", Text: *plain("View on Amazon"), URL: p.URL},
		}},
	)
	return s.post(ctx, blocks)
}

func (s *Slack) SendSummary(ctx context.Context, products []product.Product) error {
	if len(products) == 0 {
		return ErrNothingToSend
	}

	blocks := []slackBlock{
		{Type: "header", Text: plain(fmt.Sprintf("Price Tracker - Summary of %d Products", len(products)))},
	}

	// group by category, keeping first-seen order
	var order []string
	groups := make(map[string][]product.Product)
	for _, p := range products {
		if _, ok := groups[p.Category]; !ok {
			order = append(order, p.Category)
		}
		groups[p.Category] = append(groups[p.Category], p)
	}

	for _, category := range order {
		blocks = append(blocks, slackBlock{Type: "section", Text: mrkdwn("*" + category + "*")})
		for _, p := range groups[category] {
			l := newSummaryLine(p)
			text := fmt.Sprintf("<%s|%s>\nPrice: %s", p.URL, p.Title, l.Price)
			if l.Changed {
				text += fmt.Sprintf(" %s %s%%", arrow(l.Decrease), l.Change)
			}
			blocks = append(blocks, slackBlock{Type: "section", Text: mrkdwn(text)})
		}
	}
	return s.post(ctx, blocks)
}

func (s *Slack) post(ctx context.Context, blocks []slackBlock) error {
	body, err := json.Marshal(slackPayload{Channel: s.cfg.Channel, Username: s.cfg.Username, Blocks: blocks})
	if err != nil {
		return err
	}
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		URL:     s.cfg.WebhookURL,
		Method:  "POST",
		Headers: []whttp.WHTTPHeader{{Name: "Content-Type", Value: "application/json"}},
		Body:    body,
	}, s.client)
	if err != nil {
		return fmt.Errorf("send slack message: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("send slack message: status %d: %s", res.StatusCode, utils.ShortText(res.BodyString, 200))
	}
	return nil
}
