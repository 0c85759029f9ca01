package report

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bmfreitas/carrinhos-etl/internal/models"
	"github.com/bmfreitas/carrinhos-etl/internal/normalize"
)

var (
	// ErrInvalidRange means the caller asked for a window with start after
	// end. The window is rejected, never swapped or clamped.
	ErrInvalidRange = errors.New("invalid range: start after end")
	// ErrEmptySource means no valid record exists, so no default window can
	// be offered.
	ErrEmptySource = errors.New("source has no valid records")
)

// Source provides the parsed snapshots the reports are computed from.
type Source interface {
	Carts(ctx context.Context) ([]models.CartRecord, error)
	Spend(ctx context.Context) ([]models.SpendRecord, error)
}

// Service recomputes every report from a fresh read of the source snapshot;
// nothing here mutates shared state.
type Service struct {
	src Source
}

func NewService(src Source) *Service { return &Service{src: src} }

// Range is a requested day window. A zero From or To defaults to the
// corresponding end of the full span of valid cart records.
type Range struct {
	From time.Time
	To   time.Time
}

type record interface {
	Day() time.Time
	Valid() bool
}

// FilterValid drops records with any invalid required field, preserving
// input order.
func FilterValid[T record](recs []T) []T {
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		if r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

// SelectRange keeps records whose calendar day falls inside [from, to],
// inclusive on both ends.
func SelectRange[T record](recs []T, from, to time.Time) ([]T, error) {
	lo, hi := normalize.Day(from), normalize.Day(to)
	if lo.After(hi) {
		return nil, ErrInvalidRange
	}
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		if d := r.Day(); !d.Before(lo) && !d.After(hi) {
			out = append(out, r)
		}
	}
	return out, nil
}

// AggregateDaily groups valid cart records by calendar day, ascending. Days
// without records are absent, not zero. Sums are decimal-exact.
func AggregateDaily(recs []models.CartRecord) []models.DailyCartSummary {
	byDay := make(map[time.Time]*models.DailyCartSummary)
	for _, r := range recs {
		d := r.Day()
		s, ok := byDay[d]
		if !ok {
			s = &models.DailyCartSummary{Date: d}
			byDay[d] = s
		}
		s.Count++
		s.ValueTotal = s.ValueTotal.Add(r.Value)
	}
	out := make([]models.DailyCartSummary, 0, len(byDay))
	for _, s := range byDay {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// AggregateSpend groups valid spend records by calendar day, ascending.
func AggregateSpend(recs []models.SpendRecord) []models.DailySpendSummary {
	byDay := make(map[time.Time]*models.DailySpendSummary)
	for _, r := range recs {
		d := r.Day()
		s, ok := byDay[d]
		if !ok {
			s = &models.DailySpendSummary{Date: d}
			byDay[d] = s
		}
		s.SpendTotal = s.SpendTotal.Add(r.Amount)
	}
	out := make([]models.DailySpendSummary, 0, len(byDay))
	for _, s := range byDay {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Reconcile left-joins the spend series onto the abandonment series by day.
// Abandonment is the anchor: days with spend but no abandonments are
// excluded, and a day without spend gets zero, never a null.
func Reconcile(carts []models.DailyCartSummary, spend []models.DailySpendSummary) []models.ReconciledDay {
	byDay := make(map[time.Time]decimal.Decimal, len(spend))
	for _, s := range spend {
		byDay[s.Date] = byDay[s.Date].Add(s.SpendTotal)
	}
	out := make([]models.ReconciledDay, 0, len(carts))
	for _, c := range carts {
		sp, ok := byDay[c.Date]
		if !ok {
			sp = decimal.Zero
		}
		out = append(out, models.ReconciledDay{
			Date:       c.Date,
			Count:      c.Count,
			ValueTotal: c.ValueTotal,
			SpendTotal: sp,
		})
	}
	return out
}

// Span returns the first and last calendar day with a valid cart record.
func (s *Service) Span(ctx context.Context) (time.Time, time.Time, error) {
	carts, err := s.src.Carts(ctx)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	valid := FilterValid(carts)
	if len(valid) == 0 {
		return time.Time{}, time.Time{}, ErrEmptySource
	}
	lo, hi := valid[0].Day(), valid[0].Day()
	for _, r := range valid[1:] {
		if d := r.Day(); d.Before(lo) {
			lo = d
		} else if d.After(hi) {
			hi = d
		}
	}
	return lo, hi, nil
}

func (s *Service) resolve(ctx context.Context, r Range) (time.Time, time.Time, error) {
	if !r.From.IsZero() && !r.To.IsZero() {
		if normalize.Day(r.From).After(normalize.Day(r.To)) {
			return time.Time{}, time.Time{}, ErrInvalidRange
		}
	}
	if r.From.IsZero() || r.To.IsZero() {
		lo, hi, err := s.Span(ctx)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if r.From.IsZero() {
			r.From = lo
		}
		if r.To.IsZero() {
			r.To = hi
		}
	}
	lo, hi := normalize.Day(r.From), normalize.Day(r.To)
	if lo.After(hi) {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return lo, hi, nil
}

// ValidCarts returns the validity-filtered cart records inside the window,
// in source order. This feeds the CSV re-export.
func (s *Service) ValidCarts(ctx context.Context, r Range) ([]models.CartRecord, error) {
	lo, hi, err := s.resolve(ctx, r)
	if err != nil {
		return nil, err
	}
	carts, err := s.src.Carts(ctx)
	if err != nil {
		return nil, err
	}
	return SelectRange(FilterValid(carts), lo, hi)
}

// Daily produces the reconciled per-day report for the window.
func (s *Service) Daily(ctx context.Context, r Range) ([]models.ReconciledDay, error) {
	lo, hi, err := s.resolve(ctx, r)
	if err != nil {
		return nil, err
	}
	carts, err := s.src.Carts(ctx)
	if err != nil {
		return nil, err
	}
	spend, err := s.src.Spend(ctx)
	if err != nil {
		return nil, err
	}
	cartsIn, err := SelectRange(FilterValid(carts), lo, hi)
	if err != nil {
		return nil, err
	}
	spendIn, err := SelectRange(FilterValid(spend), lo, hi)
	if err != nil {
		return nil, err
	}
	return Reconcile(AggregateDaily(cartsIn), AggregateSpend(spendIn)), nil
}

// Stages counts abandonments per funnel stage inside the window, most
// frequent first.
func (s *Service) Stages(ctx context.Context, r Range) ([]models.StageCount, error) {
	recs, err := s.ValidCarts(ctx, r)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, rec := range recs {
		counts[rec.Stage]++
	}
	out := make([]models.StageCount, 0, len(counts))
	for stage, n := range counts {
		out = append(out, models.StageCount{Stage: stage, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Stage < out[j].Stage
	})
	return out, nil
}

// Summary computes the KPI cards for the window plus the recoverable value
// at the given recovery rate (percent, 0-100).
func (s *Service) Summary(ctx context.Context, r Range, recoveryRatePct int) (models.SummaryReport, error) {
	lo, hi, err := s.resolve(ctx, r)
	if err != nil {
		return models.SummaryReport{}, err
	}
	rows, err := s.Daily(ctx, Range{From: lo, To: hi})
	if err != nil {
		return models.SummaryReport{}, err
	}
	sum := models.SummaryReport{
		From:            lo.Format("2006-01-02"),
		To:              hi.Format("2006-01-02"),
		RecoveryRatePct: recoveryRatePct,
	}
	for _, row := range rows {
		sum.Abandoned += row.Count
		sum.ValueTotal = sum.ValueTotal.Add(row.ValueTotal)
		sum.SpendTotal = sum.SpendTotal.Add(row.SpendTotal)
	}
	if sum.Abandoned > 0 {
		sum.AverageTicket = sum.ValueTotal.DivRound(decimal.NewFromInt(int64(sum.Abandoned)), 2)
	}
	sum.Recoverable = sum.ValueTotal.
		Mul(decimal.NewFromInt(int64(recoveryRatePct))).
		DivRound(decimal.NewFromInt(100), 2)
	return sum, nil
}
