package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/internal/utils"
	"github.com/sw33tLie/pricescope/pkg/product"
)

var changeEmailTemplate = template.Must(template.New("change").Parse(`<html>
<head>
<style>
  body { font-family: Arial, sans-serif; }
  .price-change { font-weight: bold; color: {{if .Decrease}}green{{else}}red{{end}}; }
  .product-image { max-width: 200px; }
  .details { margin-top: 20px; }
</style>
</head>
<body>
  <h2>Price Change Alert</h2>
  <p>The price of <strong>{{.Product.Title}}</strong> has {{.Direction}}:</p>
  <div class="price-change">
    <p>Previous price: {{.Currency}} {{.Previous}}</p>
    <p>Current price: {{.Currency}} {{.Current}}</p>
    <p>Change: {{.Currency}} {{.Absolute}} ({{.Percentage}}%)</p>
  </div>
  <div class="details">
    <p><strong>ASIN:</strong> {{.Product.ASIN}}</p>
    <p><strong>Category:</strong> {{.Product.Category}}</p>
    <p><a href="{{.Product.URL}}">View on Amazon</a></p>
  </div>
  {{if .ImageURL}}<img class="product-image" src="{{.ImageURL}}" alt="{{.Product.Title}}" />{{end}}
</body>
</html>
`))

var summaryEmailTemplate = template.Must(template.New("summary").Parse(`<html>
<head>
<style>
  body { font-family: Arial, sans-serif; }
  table { border-collapse: collapse; width: 100%; }
  th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
  th { background-color: #f2f2f2; }
  tr:nth-child(even) { background-color: #f9f9f9; }
</style>
</head>
<body>
  <h2>Price Tracker Summary</h2>
  <p>Here's a summary of the {{len .Lines}} products you're tracking:</p>
  <table>
    <tr><th>Product</th><th>Category</th><th>Current Price</th><th>Link</th></tr>
    {{- range .Lines}}
    <tr>
      <td>{{.Product.Title}}</td>
      <td>{{.Product.Category}}</td>
      <td>{{.Price}}{{if .Changed}} <span style="color: {{if .Decrease}}green{{else}}red{{end}}">({{if .Decrease}}▼{{else}}▲{{end}} {{.Change}}%)</span>{{end}}</td>
      <td><a href="{{.Product.URL}}">View</a></td>
    </tr>
    {{- end}}
  </table>
  <p>This summary was generated on {{.Generated}}</p>
</body>
</html>
`))

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email sends HTML mail through an SMTP relay. smtp.SendMail upgrades the
// connection with STARTTLS when the server offers it.
type Email struct {
	cfg      config.Email
	sendMail sendMailFunc
	now      func() time.Time
}

func NewEmail(cfg config.Email) *Email {
	return &Email{cfg: cfg, sendMail: smtp.SendMail, now: time.Now}
}

func (e *Email) Name() string {
	return "email"
}

func (e *Email) NotifyPriceChange(ctx context.Context, p product.Product, change product.ChangeMetrics) error {
	a, err := newAlert(p, change)
	if err != nil {
		return err
	}
	var body bytes.Buffer
	if err := changeEmailTemplate.Execute(&body, a); err != nil {
		return err
	}
	subject := fmt.Sprintf("Price %s for %s", a.Direction, p.Title)
	return e.send(ctx, subject, body.Bytes())
}

func (e *Email) SendSummary(ctx context.Context, products []product.Product) error {
	if len(products) == 0 {
		return ErrNothingToSend
	}
	data := struct {
		Lines     []summaryLine
		Generated string
	}{Generated: e.now().Format("2006-01-02 15:04:05")}
	for _, p := range products {
		data.Lines = append(data.Lines, newSummaryLine(p))
	}

	var body bytes.Buffer
	if err := summaryEmailTemplate.Execute(&body, data); err != nil {
		return err
	}
	subject := fmt.Sprintf("Price Tracker - Summary of %d Products", len(products))
	return e.send(ctx, subject, body.Bytes())
}

func (e *Email) send(ctx context.Context, subject string, html []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sender := e.cfg.Sender
	if sender == "" {
		sender = e.cfg.Username
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", sender)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(e.cfg.Recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.Write(html)

	addr := net.JoinHostPort(e.cfg.SMTPServer, strconv.Itoa(e.cfg.SMTPPort))
	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.SMTPServer)
	}
	if err := e.sendMail(addr, auth, sender, e.cfg.Recipients, msg.Bytes()); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	utils.Log.Debugf("Email %q sent to %d recipients", subject, len(e.cfg.Recipients))
	return nil
}
