package whttp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSendHTTPRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "pricescope-test" {
			t.Errorf("custom header not sent: %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("Accept-Language") == "" {
			t.Error("missing Accept-Language")
		}
		w.Write([]byte("<html><head><title>\n  Hello\r\n World </title></head><body>x</body></html>"))
	}))
	defer srv.Close()

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{
		URL:     srv.URL,
		Headers: []WHTTPHeader{{Name: "User-Agent", Value: "pricescope-test"}},
	}, NewClient(time.Second, 0))
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != 200 || res.HTTPTitle != "Hello World" {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func TestSendHTTPRequestRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))
	defer srv.Close()

	client := NewClient(time.Second, 2)
	client.RetryWaitMin = time.Millisecond
	client.RetryWaitMax = time.Millisecond

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: srv.URL, Method: "POST", Body: []byte("payload")}, client)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != 200 || res.BodyString != "payload" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("unexpected result after retry: %+v (calls=%d)", res, calls)
	}
}

func TestSendHTTPRequestReturnsLastStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(time.Second, 1)
	client.RetryWaitMin = time.Millisecond
	client.RetryWaitMax = time.Millisecond

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{URL: srv.URL}, client)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.StatusCode)
	}
}

func TestHTMLTitle(t *testing.T) {
	if _, ok := HTMLTitle("<html><body>no title</body></html>"); ok {
		t.Fatal("expected no title")
	}
	if title, ok := HTMLTitle("<title>Amazon.com : Coffee</title>"); !ok || title != "Amazon.com : Coffee" {
		t.Fatalf("unexpected title %q", title)
	}
}
