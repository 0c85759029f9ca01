package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Field markers recorded on a raw record when a required field fails to
// parse. The validity filter is the only place that acts on them.
const (
	FieldStartedAt = "started_at"
	FieldValue     = "value"
	FieldStage     = "stage"
	FieldDate      = "date"
	FieldAmount    = "amount"
)

// CartRecord is one row of the abandoned-cart export after normalization.
// Records are immutable once parsed; a record that failed normalization
// carries the failing field names in BadFields instead of repaired values.
type CartRecord struct {
	StartedAt time.Time
	Value     decimal.Decimal
	Stage     string
	BadFields []string
}

func (r CartRecord) Valid() bool { return len(r.BadFields) == 0 }

// Day returns the calendar day of the record in UTC.
func (r CartRecord) Day() time.Time { return day(r.StartedAt) }

// SpendRecord is one row of the ad-spend export after normalization.
type SpendRecord struct {
	Date      time.Time
	Amount    decimal.Decimal
	BadFields []string
}

func (r SpendRecord) Valid() bool { return len(r.BadFields) == 0 }

func (r SpendRecord) Day() time.Time { return day(r.Date) }

// DailyCartSummary aggregates valid cart records for one calendar day.
type DailyCartSummary struct {
	Date       time.Time
	Count      int
	ValueTotal decimal.Decimal
}

// DailySpendSummary aggregates valid spend records for one calendar day.
type DailySpendSummary struct {
	Date       time.Time
	SpendTotal decimal.Decimal
}

// ReconciledDay joins the two daily series on the calendar-day key. Days
// present only in the spend series are not represented; the report is
// abandonment-centric.
type ReconciledDay struct {
	Date       time.Time
	Count      int
	ValueTotal decimal.Decimal
	SpendTotal decimal.Decimal
}

type StageCount struct {
	Stage string `json:"stage"`
	Count int    `json:"count"`
}

// ReportRow is the API shape of a ReconciledDay.
type ReportRow struct {
	Date       string          `json:"date"`
	Abandoned  int             `json:"abandoned_count"`
	ValueTotal decimal.Decimal `json:"abandoned_value_total"`
	SpendTotal decimal.Decimal `json:"amount_spent_total"`
}

// SummaryReport carries the KPI cards of the dashboard plus the recovery
// simulation for the requested rate.
type SummaryReport struct {
	From            string          `json:"from"`
	To              string          `json:"to"`
	Abandoned       int             `json:"abandoned_count"`
	ValueTotal      decimal.Decimal `json:"abandoned_value_total"`
	AverageTicket   decimal.Decimal `json:"average_ticket"`
	SpendTotal      decimal.Decimal `json:"amount_spent_total"`
	RecoveryRatePct int             `json:"recovery_rate_pct"`
	Recoverable     decimal.Decimal `json:"recoverable_value"`
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
