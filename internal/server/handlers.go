package server

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/sw33tLie/pricescope/internal/utils"
	"github.com/sw33tLie/pricescope/pkg/pricing"
	"github.com/sw33tLie/pricescope/pkg/product"
	"github.com/sw33tLie/pricescope/pkg/report"
	"github.com/sw33tLie/pricescope/pkg/scrapers/amazon"
	"github.com/sw33tLie/pricescope/pkg/storage"
	"github.com/sw33tLie/pricescope/pkg/tracker"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Log.Debugf("write response: %v", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Store.GetStats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// productSummary is a product without its full history.
type productSummary struct {
	ASIN         string                `json:"asin"`
	Title        string                `json:"title"`
	Brand        string                `json:"brand,omitempty"`
	Category     string                `json:"category"`
	URL          string                `json:"url"`
	CurrentPrice *product.Observation  `json:"current_price,omitempty"`
	Change       product.ChangeMetrics `json:"change"`
}

func summarize(p product.Product) productSummary {
	out := productSummary{ASIN: p.ASIN, Title: p.Title, Brand: p.Brand, Category: p.Category, URL: p.URL, Change: p.PriceChange()}
	if cur, ok := p.CurrentPrice(); ok {
		out.CurrentPrice = &cur
	}
	return out
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.Store.ListProducts(r.Context(), storage.ListOptions{Category: r.URL.Query().Get("category")})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]productSummary, 0, len(products))
	for _, p := range products {
		out = append(out, summarize(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// loadProduct writes the error response itself and returns nil when the
// product cannot be served.
func (s *Server) loadProduct(w http.ResponseWriter, r *http.Request) *product.Product {
	asin := strings.ToUpper(r.PathValue("asin"))
	p, err := s.Store.GetProduct(r.Context(), asin)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "product not found", http.StatusNotFound)
		return nil
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil
	}
	return p
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	p := s.loadProduct(w, r)
	if p == nil {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type historyResponse struct {
	ASIN    string                `json:"asin"`
	Title   string                `json:"title"`
	History product.History       `json:"history"`
	Change  product.ChangeMetrics `json:"change"`
	Lowest  *product.Observation  `json:"lowest,omitempty"`
	Highest *product.Observation  `json:"highest,omitempty"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	p := s.loadProduct(w, r)
	if p == nil {
		return
	}
	resp := historyResponse{ASIN: p.ASIN, Title: p.Title, History: p.History.Sorted(), Change: p.PriceChange()}
	if low, high, ok := p.History.MinMax(); ok {
		resp.Lowest, resp.Highest = &low, &high
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) compareRows(r *http.Request) ([]pricing.Row, bool, error) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	products, err := s.Store.ListProducts(r.Context(), storage.ListOptions{Category: q.Get("category")})
	if err != nil {
		return nil, false, err
	}
	rows, byUnit := pricing.CompareWith(products, pricing.CompareOptions{TargetUnit: q.Get("unit"), Limit: limit})
	return rows, byUnit, nil
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	rows, byUnit, err := s.compareRows(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ranked_by_unit": byUnit,
		"rows":           rows,
	})
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	changes, err := s.Store.ListRecentChanges(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

type TrackRequest struct {
	Target string `json:"target"` // product URL or ASIN
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if s.Tracker.Scraper == nil {
		http.Error(w, "tracking is disabled", http.StatusNotImplemented)
		return
	}
	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg := s.Tracker
	cfg.Store = s.Store
	var res *tracker.Result
	err := s.locked(func() (err error) {
		res, err = tracker.UpdateProduct(r.Context(), cfg, req.Target)
		return err
	})
	switch {
	case errors.Is(err, amazon.ErrNoASIN):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	status := http.StatusOK
	if res.IsNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, summarize(res.Product))
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	err := s.locked(func() error {
		return s.Store.RemoveProduct(r.Context(), strings.ToUpper(r.PathValue("asin")))
	})
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "product not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>pricescope</title>
  <style>
    body { font-family: sans-serif; margin: 2em; }
    table.comparison { border-collapse: collapse; }
    table.comparison td, table.comparison th { border: 1px solid #ddd; padding: 6px 10px; }
  </style>
</head>
<body>
  <h1>pricescope</h1>
  <form method="get">
    <input name="category" placeholder="category" value="{{.Category}}">
    <input name="unit" placeholder="unit (g, ml, item)" value="{{.Unit}}">
    <button type="submit">Compare</button>
  </form>
  {{if .Table}}{{.Table}}{{else}}<p>No products to compare.</p>{{end}}
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	rows, _, err := s.compareRows(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var table template.HTML
	if len(rows) > 0 {
		out, err := report.ComparisonHTML(rows)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		// already escaped by html/template
		table = template.HTML(out)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = indexTemplate.Execute(w, map[string]interface{}{
		"Category": r.URL.Query().Get("category"),
		"Unit":     r.URL.Query().Get("unit"),
		"Table":    table,
	})
	if err != nil {
		utils.Log.Debugf("render index: %v", err)
	}
}
