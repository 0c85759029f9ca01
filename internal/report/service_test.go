package report

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bmfreitas/carrinhos-etl/internal/models"
)

type stubSource struct {
	carts []models.CartRecord
	spend []models.SpendRecord
}

func (s stubSource) Carts(ctx context.Context) ([]models.CartRecord, error)  { return s.carts, nil }
func (s stubSource) Spend(ctx context.Context) ([]models.SpendRecord, error) { return s.spend, nil }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cart(started time.Time, value, stage string) models.CartRecord {
	v, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return models.CartRecord{StartedAt: started, Value: v, Stage: stage}
}

func spent(d time.Time, amount string) models.SpendRecord {
	v, err := decimal.NewFromString(amount)
	if err != nil {
		panic(err)
	}
	return models.SpendRecord{Date: d, Amount: v}
}

func TestFilterValid_DropsMarkedRecords(t *testing.T) {
	recs := []models.CartRecord{
		cart(day(2024, 1, 1), "50.00", "Pagamento"),
		{BadFields: []string{models.FieldValue}},
		cart(day(2024, 1, 2), "30.00", "Dados Pessoais"),
	}
	got := FilterValid(recs)
	if len(got) != 2 {
		t.Fatalf("expected 2 valid records, got %d", len(got))
	}
	if got[0].Stage != "Pagamento" || got[1].Stage != "Dados Pessoais" {
		t.Fatalf("order not preserved: %+v", got)
	}
}

func TestSelectRange_InclusiveAndIdempotent(t *testing.T) {
	recs := []models.CartRecord{
		cart(time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC), "1", "a"),
		cart(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "2", "b"),
		cart(time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC), "3", "c"),
	}
	got, err := SelectRange(recs, day(2024, 1, 1), day(2024, 1, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records (both bounds inclusive), got %d", len(got))
	}
	again, err := SelectRange(got, day(2024, 1, 1), day(2024, 1, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(again) != len(got) {
		t.Fatalf("re-applying the same range changed the result: %d vs %d", len(again), len(got))
	}
}

func TestSelectRange_StartAfterEnd(t *testing.T) {
	recs := []models.CartRecord{cart(day(2024, 2, 1), "1", "a")}
	if _, err := SelectRange(recs, day(2024, 3, 1), day(2024, 1, 1)); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestSelectRange_EmptyWindowIsNotAnError(t *testing.T) {
	recs := []models.CartRecord{cart(day(2024, 2, 1), "1", "a")}
	got, err := SelectRange(recs, day(2024, 5, 1), day(2024, 5, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestAggregateDaily_SumPreserving(t *testing.T) {
	base := day(2024, 1, 1)
	recs := make([]models.CartRecord, 0, 10000)
	expected := decimal.Zero
	for i := 0; i < 10000; i++ {
		v := fmt.Sprintf("%d.%02d", i%73, i%100) // cent values that drift under float64
		r := cart(base.AddDate(0, 0, i%31).Add(time.Duration(i%24)*time.Hour), v, "Pagamento")
		recs = append(recs, r)
		expected = expected.Add(r.Value)
	}
	days := AggregateDaily(recs)
	total := decimal.Zero
	count := 0
	for _, d := range days {
		total = total.Add(d.ValueTotal)
		count += d.Count
	}
	if !total.Equal(expected) {
		t.Fatalf("aggregation lost cents: got %s, want %s", total, expected)
	}
	if count != len(recs) {
		t.Fatalf("aggregation lost rows: got %d, want %d", count, len(recs))
	}
	for i := 1; i < len(days); i++ {
		if !days[i-1].Date.Before(days[i].Date) {
			t.Fatalf("output not ascending at %d: %v >= %v", i, days[i-1].Date, days[i].Date)
		}
	}
}

func TestReconcile_AbandonmentAnchored(t *testing.T) {
	carts := []models.DailyCartSummary{
		{Date: day(2024, 1, 1), Count: 2, ValueTotal: decimal.RequireFromString("80.00")},
		{Date: day(2024, 1, 2), Count: 1, ValueTotal: decimal.RequireFromString("100.00")},
	}
	spend := []models.DailySpendSummary{
		{Date: day(2024, 1, 1), SpendTotal: decimal.RequireFromString("20.00")},
		{Date: day(2024, 1, 9), SpendTotal: decimal.RequireFromString("99.00")}, // spend-only day
	}
	rows := Reconcile(carts, spend)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (spend-only day excluded), got %d", len(rows))
	}
	if !rows[0].SpendTotal.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("expected spend 20.00, got %s", rows[0].SpendTotal)
	}
	if !rows[1].SpendTotal.Equal(decimal.Zero) {
		t.Fatalf("expected zero spend for abandonment-only day, got %s", rows[1].SpendTotal)
	}
}

func TestService_DailyEndToEnd(t *testing.T) {
	src := stubSource{
		carts: []models.CartRecord{
			cart(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), "50.00", "Pagamento"),
			cart(time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), "30.00", "Dados Pessoais"),
			cart(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), "100.00", "Pagamento"),
			{StartedAt: day(2024, 1, 2), BadFields: []string{models.FieldValue}},
		},
		spend: []models.SpendRecord{spent(day(2024, 1, 1), "20.00")},
	}
	svc := NewService(src)

	rows, err := svc.Daily(context.Background(), Range{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 days, got %d", len(rows))
	}
	r0, r1 := rows[0], rows[1]
	if r0.Count != 2 || !r0.ValueTotal.Equal(decimal.RequireFromString("80.00")) || !r0.SpendTotal.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("unexpected first day: %+v", r0)
	}
	if r1.Count != 1 || !r1.ValueTotal.Equal(decimal.RequireFromString("100.00")) || !r1.SpendTotal.Equal(decimal.Zero) {
		t.Fatalf("unexpected second day: %+v", r1)
	}
}

func TestService_EmptySource(t *testing.T) {
	svc := NewService(stubSource{carts: []models.CartRecord{{BadFields: []string{models.FieldValue}}}})
	if _, err := svc.Daily(context.Background(), Range{}); !errors.Is(err, ErrEmptySource) {
		t.Fatalf("expected ErrEmptySource, got %v", err)
	}
}

func TestService_InvalidRangeBeatsEmptySource(t *testing.T) {
	svc := NewService(stubSource{})
	_, err := svc.Daily(context.Background(), Range{From: day(2024, 3, 1), To: day(2024, 1, 1)})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestService_Stages(t *testing.T) {
	src := stubSource{
		carts: []models.CartRecord{
			cart(day(2024, 1, 1), "1", "Pagamento"),
			cart(day(2024, 1, 1), "1", "Pagamento"),
			cart(day(2024, 1, 2), "1", "Dados Pessoais"),
		},
	}
	stages, err := NewService(src).Stages(context.Background(), Range{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stages) != 2 || stages[0].Stage != "Pagamento" || stages[0].Count != 2 {
		t.Fatalf("unexpected stage distribution: %+v", stages)
	}
}

func TestService_SummaryAndRecovery(t *testing.T) {
	src := stubSource{
		carts: []models.CartRecord{
			cart(day(2024, 1, 1), "50.00", "Pagamento"),
			cart(day(2024, 1, 1), "30.00", "Dados Pessoais"),
			cart(day(2024, 1, 2), "100.00", "Pagamento"),
		},
		spend: []models.SpendRecord{spent(day(2024, 1, 1), "20.00")},
	}
	sum, err := NewService(src).Summary(context.Background(), Range{}, 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Abandoned != 3 {
		t.Fatalf("expected 3 abandons, got %d", sum.Abandoned)
	}
	if !sum.ValueTotal.Equal(decimal.RequireFromString("180.00")) {
		t.Fatalf("expected total 180.00, got %s", sum.ValueTotal)
	}
	if !sum.AverageTicket.Equal(decimal.RequireFromString("60.00")) {
		t.Fatalf("expected average ticket 60.00, got %s", sum.AverageTicket)
	}
	if !sum.SpendTotal.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("expected spend 20.00, got %s", sum.SpendTotal)
	}
	if !sum.Recoverable.Equal(decimal.RequireFromString("45.00")) {
		t.Fatalf("expected recoverable 45.00 at 25%%, got %s", sum.Recoverable)
	}
}
