package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/couchcryptid/weather-oracle/internal/store"
)

// WithReports registers the report query route backed by s.
func WithReports(s store.ReportStore) Option {
	return func(srv *Server) {
		srv.mux.HandleFunc("GET /api/v1/reports", func(w http.ResponseWriter, r *http.Request) {
			opts, err := parseListOptions(r)
			if err != nil {
				srv.writeError(w, r, err)
				return
			}
			reports, err := s.List(r.Context(), opts)
			if err != nil {
				srv.writeError(w, r, err)
				return
			}
			out := make([]ReportView, len(reports))
			for i, report := range reports {
				out[i] = NewReportView(report)
			}
			writeJSON(w, http.StatusOK, out)
		})
	}
}

func parseListOptions(r *http.Request) (store.ListOptions, error) {
	q := r.URL.Query()
	opts := store.ListOptions{City: q.Get("city")}

	if raw := q.Get("requester"); raw != "" {
		addr, err := parseAddress("requester", raw)
		if err != nil {
			return store.ListOptions{}, err
		}
		opts.Requester = &addr
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > store.MaxListLimit {
			return store.ListOptions{}, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrInvalidInput, store.MaxListLimit)
		}
		opts.Limit = n
	}
	return opts, nil
}
