package usage

import "time"

// Kind is a metered operation.
type Kind string

// Metered operations.
const (
	KindChat   Kind = "chat"
	KindSearch Kind = "search"
	// KindEmbeddingTokens counts embedding tokens rather than requests.
	KindEmbeddingTokens Kind = "embedding_tokens"
)

// Kinds lists every metered operation in report order.
var Kinds = []Kind{KindChat, KindSearch, KindEmbeddingTokens}

// Meter is the consumption of one Kind against its plan ceiling.
type Meter struct {
	kind  Kind
	used  int64
	limit int64 // 0 means unlimited
}

// NewMeter creates a Meter snapshot.
func NewMeter(kind Kind, used, limit int64) Meter {
	return Meter{kind: kind, used: used, limit: limit}
}

// Kind returns the metered operation.
func (m Meter) Kind() Kind { return m.kind }

// Used returns the consumption so far.
func (m Meter) Used() int64 { return m.used }

// Limit returns the plan ceiling; 0 means unlimited.
func (m Meter) Limit() int64 { return m.limit }

// Remaining returns what is left before the ceiling, or -1 when unlimited.
func (m Meter) Remaining() int64 {
	if m.limit <= 0 {
		return -1
	}
	if m.used >= m.limit {
		return 0
	}
	return m.limit - m.used
}

// IsExhausted reports whether the ceiling has been reached.
func (m Meter) IsExhausted() bool { return m.limit > 0 && m.used >= m.limit }

// Report is a tenant's consumption for the current billing month.
type Report struct {
	plan        string
	periodStart time.Time
	periodEnd   time.Time
	meters      []Meter
}

// NewReport creates a usage report.
func NewReport(plan string, start, end time.Time, meters []Meter) Report {
	return Report{plan: plan, periodStart: start, periodEnd: end, meters: meters}
}

// Plan returns the tenant plan name.
func (r Report) Plan() string { return r.plan }

// PeriodStart returns the start of the billing month.
func (r Report) PeriodStart() time.Time { return r.periodStart }

// PeriodEnd returns the start of the next billing month.
func (r Report) PeriodEnd() time.Time { return r.periodEnd }

// Meters returns per-kind consumption.
func (r Report) Meters() []Meter { return r.meters }

// MonthBounds returns the UTC start of the month containing now and of the next one.
func MonthBounds(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
