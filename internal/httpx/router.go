package httpx

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bmfreitas/carrinhos-etl/internal/config"
	"github.com/bmfreitas/carrinhos-etl/internal/ingest"
	"github.com/bmfreitas/carrinhos-etl/internal/models"
	"github.com/bmfreitas/carrinhos-etl/internal/report"
	"github.com/bmfreitas/carrinhos-etl/internal/utils"
)

func NewRouter(log *slog.Logger, ld *ingest.Loader, svc *report.Service, cfg config.Config) http.Handler {
	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ready")) })

	mux.Post("/sources/refresh", func(w http.ResponseWriter, r *http.Request) {
		if err := ld.Refresh(r.Context()); err != nil {
			http.Error(w, err.Error(), 502)
			return
		}
		writeJSON(w, map[string]any{"refreshed": true})
	})

	mux.Get("/report/daily", func(w http.ResponseWriter, r *http.Request) {
		rng, err := parseRange(r)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		rows, err := svc.Daily(r.Context(), rng)
		if err != nil {
			http.Error(w, err.Error(), status(err))
			return
		}
		writeJSON(w, toRows(rows))
	})

	mux.Get("/report/stages", func(w http.ResponseWriter, r *http.Request) {
		rng, err := parseRange(r)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		stages, err := svc.Stages(r.Context(), rng)
		if err != nil {
			http.Error(w, err.Error(), status(err))
			return
		}
		writeJSON(w, stages)
	})

	mux.Get("/report/summary", func(w http.ResponseWriter, r *http.Request) {
		rng, err := parseRange(r)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		rate := 25 // default do simulador de recuperação
		if q := r.URL.Query().Get("recovery_rate"); q != "" {
			rate, err = strconv.Atoi(q)
			if err != nil || rate < 0 || rate > 100 {
				http.Error(w, "recovery_rate must be 0-100", 400)
				return
			}
		}
		sum, err := svc.Summary(r.Context(), rng, rate)
		if err != nil {
			http.Error(w, err.Error(), status(err))
			return
		}
		writeJSON(w, sum)
	})

	mux.Get("/export/carts.csv", func(w http.ResponseWriter, r *http.Request) {
		rng, err := parseRange(r)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		recs, err := svc.ValidCarts(r.Context(), rng)
		if err != nil {
			http.Error(w, err.Error(), status(err))
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="carts.csv"`)
		cw := csv.NewWriter(w)
		cw.Write([]string{cfg.Carts.DateColumn, cfg.Carts.ValueColumn, cfg.Carts.StageColumn})
		for _, rec := range recs {
			cw.Write([]string{
				rec.StartedAt.Format("02/01/2006 15:04"),
				strings.Replace(rec.Value.StringFixed(2), ".", ",", 1),
				rec.Stage,
			})
		}
		cw.Flush()
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func parseRange(r *http.Request) (report.Range, error) {
	var rng report.Range
	if q := r.URL.Query().Get("from"); q != "" {
		t, err := time.Parse("2006-01-02", q)
		if err != nil {
			return rng, errors.New("bad from date (YYYY-MM-DD)")
		}
		rng.From = t
	}
	if q := r.URL.Query().Get("to"); q != "" {
		t, err := time.Parse("2006-01-02", q)
		if err != nil {
			return rng, errors.New("bad to date (YYYY-MM-DD)")
		}
		rng.To = t
	}
	return rng, nil
}

func status(err error) int {
	var schemaErr *ingest.SchemaError
	switch {
	case errors.Is(err, report.ErrInvalidRange):
		return 400
	case errors.Is(err, report.ErrEmptySource):
		return 404
	case errors.As(err, &schemaErr):
		return 502
	}
	return 502
}

func toRows(days []models.ReconciledDay) []models.ReportRow {
	out := make([]models.ReportRow, 0, len(days))
	for _, d := range days {
		out = append(out, models.ReportRow{
			Date:       d.Date.Format("2006-01-02"),
			Abandoned:  d.Count,
			ValueTotal: d.ValueTotal,
			SpendTotal: d.SpendTotal,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.Encode(v)
}
