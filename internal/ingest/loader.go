package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bmfreitas/carrinhos-etl/internal/config"
	"github.com/bmfreitas/carrinhos-etl/internal/metrics"
	"github.com/bmfreitas/carrinhos-etl/internal/models"
	"github.com/bmfreitas/carrinhos-etl/internal/normalize"
	"github.com/bmfreitas/carrinhos-etl/internal/store"
)

// SchemaError reports a required column missing from a fetched table. The
// loader never guesses a substitute column; the whole load of that source
// fails and names what was missing.
type SchemaError struct {
	Source string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("source %s: required column %q not found", e.Source, e.Column)
}

// Loader fetches the two CSV sources, maps every row through the normalizer
// and keeps the parsed snapshot in the store. A row that fails normalization
// becomes a record with invalid-field markers, never an error; the validity
// filter downstream is the single place that decides inclusion.
type Loader struct {
	c   HTTPClient
	st  *store.MemoryStore
	log *slog.Logger
	cfg config.Config

	// single-writer at fetch time: first reader wins the fetch, later
	// readers observe the populated store
	mu sync.Mutex
}

func NewLoader(c HTTPClient, st *store.MemoryStore, log *slog.Logger, cfg config.Config) *Loader {
	return &Loader{c: c, st: st, log: log, cfg: cfg}
}

// Carts returns the cached cart snapshot, fetching it on first use.
func (l *Loader) Carts(ctx context.Context) ([]models.CartRecord, error) {
	if recs, ok := l.st.Carts(); ok {
		return recs, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if recs, ok := l.st.Carts(); ok {
		return recs, nil
	}
	return l.loadCarts(ctx)
}

// Spend returns the cached spend snapshot, fetching it on first use.
func (l *Loader) Spend(ctx context.Context) ([]models.SpendRecord, error) {
	if recs, ok := l.st.Spend(); ok {
		return recs, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if recs, ok := l.st.Spend(); ok {
		return recs, nil
	}
	return l.loadSpend(ctx)
}

// Refresh drops both snapshots and reloads them. There is no automatic
// retry anywhere in the loader; this is the manual one.
func (l *Loader) Refresh(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.st.Invalidate()
	if _, err := l.loadCarts(ctx); err != nil {
		return err
	}
	if _, err := l.loadSpend(ctx); err != nil {
		return err
	}
	return nil
}

func (l *Loader) loadCarts(ctx context.Context) ([]models.CartRecord, error) {
	sc := l.cfg.Carts
	df, err := normalize.DateFormatFromString(sc.DateFormat)
	if err != nil {
		return nil, fmt.Errorf("carts: %w", err)
	}
	rows, err := l.fetch(ctx, "carts", sc.URL)
	if err != nil {
		return nil, err
	}
	cols, body, err := resolveColumns("carts", rows, sc, []string{sc.DateColumn, sc.ValueColumn, sc.StageColumn})
	if err != nil {
		return nil, err
	}

	recs := make([]models.CartRecord, 0, len(body))
	for _, row := range body {
		var rec models.CartRecord
		if t, err := normalize.ParseDate(cell(row, cols[sc.DateColumn]), df); err != nil {
			rec.BadFields = append(rec.BadFields, models.FieldStartedAt)
			metrics.RowsInvalid.WithLabelValues("carts", models.FieldStartedAt).Inc()
		} else {
			rec.StartedAt = t
		}
		if v, err := normalize.ParseDecimal(cell(row, cols[sc.ValueColumn])); err != nil || v.IsNegative() {
			rec.BadFields = append(rec.BadFields, models.FieldValue)
			metrics.RowsInvalid.WithLabelValues("carts", models.FieldValue).Inc()
		} else {
			rec.Value = v
		}
		if stage := strings.TrimSpace(cell(row, cols[sc.StageColumn])); stage == "" {
			rec.BadFields = append(rec.BadFields, models.FieldStage)
			metrics.RowsInvalid.WithLabelValues("carts", models.FieldStage).Inc()
		} else {
			rec.Stage = stage
		}
		recs = append(recs, rec)
	}
	metrics.RowsParsed.WithLabelValues("carts").Add(float64(len(recs)))
	l.st.SetCarts(recs)
	l.log.Info("carts loaded", slog.Int("rows", len(recs)))
	return recs, nil
}

func (l *Loader) loadSpend(ctx context.Context) ([]models.SpendRecord, error) {
	sc := l.cfg.Spend
	df, err := normalize.DateFormatFromString(sc.DateFormat)
	if err != nil {
		return nil, fmt.Errorf("spend: %w", err)
	}
	rows, err := l.fetch(ctx, "spend", sc.URL)
	if err != nil {
		return nil, err
	}
	cols, body, err := resolveColumns("spend", rows, sc, []string{sc.DateColumn, sc.ValueColumn})
	if err != nil {
		return nil, err
	}

	recs := make([]models.SpendRecord, 0, len(body))
	for _, row := range body {
		var rec models.SpendRecord
		if t, err := normalize.ParseDate(cell(row, cols[sc.DateColumn]), df); err != nil {
			rec.BadFields = append(rec.BadFields, models.FieldDate)
			metrics.RowsInvalid.WithLabelValues("spend", models.FieldDate).Inc()
		} else {
			rec.Date = normalize.Day(t)
		}
		if v, err := normalize.ParseDecimal(cell(row, cols[sc.ValueColumn])); err != nil || v.IsNegative() {
			rec.BadFields = append(rec.BadFields, models.FieldAmount)
			metrics.RowsInvalid.WithLabelValues("spend", models.FieldAmount).Inc()
		} else {
			rec.Amount = v
		}
		recs = append(recs, rec)
	}
	metrics.RowsParsed.WithLabelValues("spend").Add(float64(len(recs)))
	l.st.SetSpend(recs)
	l.log.Info("spend loaded", slog.Int("rows", len(recs)))
	return recs, nil
}

func (l *Loader) fetch(ctx context.Context, source, url string) ([][]string, error) {
	start := time.Now()
	rows, err := fetchCSV(ctx, l.c, url)
	metrics.FetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		l.log.Error("fetch failed", slog.String("source", source), slog.String("err", err.Error()))
		return nil, fmt.Errorf("fetch %s: %w", source, err)
	}
	return rows, nil
}

// resolveColumns maps the required column names to their indexes from the
// header row, or positionally for the headerless feed variant. It returns
// the data rows with any header stripped.
func resolveColumns(source string, rows [][]string, sc config.SourceConfig, required []string) (map[string]int, [][]string, error) {
	cols := make(map[string]int, len(required))
	if sc.Headerless {
		// variante sem cabeçalho: colunas posicionais
		for i, name := range required {
			cols[name] = i
		}
		return cols, rows, nil
	}
	if len(rows) == 0 {
		return cols, nil, nil
	}
	header := rows[0]
	for _, name := range required {
		idx := -1
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil, &SchemaError{Source: source, Column: name}
		}
		cols[name] = idx
	}
	return cols, rows[1:], nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
