package whttp

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/sw33tLie/pricescope/internal/utils"
)

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
	Body    []byte
}

type WHTTPRes struct {
	StatusCode     int
	ResponseLength int
	HTTPTitle      string
	BodyString     string
	FinalURL       string
}

// NewClient returns a retrying client. retries is the number of retries after
// the first attempt; 5xx and 429 responses and connection errors are retried.
func NewClient(timeout time.Duration, retries int) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.Logger = leveledLogger{utils.Log}
	client.RetryMax = retries
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	if timeout > 0 {
		client.HTTPClient.Timeout = timeout
	}
	// hand the last response back instead of an error so callers can report the status
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (*WHTTPRes, error) {
	method := wReq.Method
	if method == "" {
		method = "GET"
	}
	var body interface{}
	if wReq.Body != nil {
		body = bytes.NewReader(wReq.Body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	// Set common headers
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-transform")

	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes := &WHTTPRes{
		StatusCode: resp.StatusCode,
		BodyString: string(bodyBytes),
		FinalURL:   resp.Request.URL.String(),
	}
	if title, ok := HTMLTitle(wRes.BodyString); ok {
		wRes.HTTPTitle = title
	}
	wRes.ResponseLength = utf8.RuneCountInString(wRes.BodyString)
	return wRes, nil
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}

// HTMLTitle returns the cleaned text of the document's <title>.
func HTMLTitle(body string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		utils.Log.Debugf("Failed to parse HTML: %v", err)
		return "", false
	}
	title, ok := traverse(doc)
	if !ok {
		return "", false
	}
	title = strings.ReplaceAll(strings.ReplaceAll(title, "\n", " "), "\r", "")
	return strings.ToValidUTF8(strings.Join(strings.Fields(title), " "), ""), true
}

// leveledLogger routes retryablehttp logs through logrus.
type leveledLogger struct {
	l *logrus.Logger
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			f[k] = kv[i+1]
		}
	}
	return f
}

func (x leveledLogger) Error(msg string, kv ...interface{}) { x.l.WithFields(fields(kv)).Error(msg) }
func (x leveledLogger) Warn(msg string, kv ...interface{})  { x.l.WithFields(fields(kv)).Warn(msg) }
func (x leveledLogger) Info(msg string, kv ...interface{})  { x.l.WithFields(fields(kv)).Debug(msg) }
func (x leveledLogger) Debug(msg string, kv ...interface{}) { x.l.WithFields(fields(kv)).Debug(msg) }
