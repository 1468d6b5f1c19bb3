// Package domain holds the lead-qualification data model and the pure
// derivations over it. It has no dependency on transport or storage.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Budget tiers accepted on a customer record.
const (
	BudgetCompany = "Company"
	BudgetSelf    = "Self"
)

// Qualification statuses. A record is either unscored (null status),
// Qualified or Nurture.
const (
	StatusQualified = "Qualified"
	StatusNurture   = "Nurture"
)

// QualifiedThreshold is the score at or above which a lead is Qualified
// regardless of what the classifier text says.
const QualifiedThreshold = 60

// timeLayouts are the accepted wire formats for timestamps, most specific
// first. Webinar tools and the dashboard send zone-less ISO-8601.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Time is a time.Time that tolerates ISO-8601 strings with or without a
// zone offset on the way in, and always marshals as RFC 3339.
type Time struct {
	time.Time
}

// ParseTime parses an ISO-8601 string using the accepted layouts.
func ParseTime(s string) (Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Time{t}, nil
		}
	}
	return Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON accepts null and any of the supported layouts.
func (t *Time) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*t = Time{}
		return nil
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON emits RFC 3339, or null for the zero value.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(time.RFC3339) + `"`), nil
}

// Customer is a customer/lead record. Optional fields are pointers so the
// wire shape carries explicit nulls.
type Customer struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	Country *string `json:"country"`

	// Qualification inputs
	Goal            *string `json:"goal"`
	Budget          *string `json:"budget"` // "Company" | "Self" | null
	WebinarJoin     *Time   `json:"webinar_join"`
	WebinarLeave    *Time   `json:"webinar_leave"`
	AskedQuestion   bool    `json:"asked_q"`
	Referred        bool    `json:"referred"`
	PastTouchpoints int     `json:"past_touchpoints"`

	// Lifecycle
	CreatedAt Time  `json:"created_at"`
	ClosedAt  *Time `json:"closed_at"`

	// Derived by qualification
	EngagedMins *int    `json:"engaged_mins"`
	Score       *int    `json:"score"` // 0-100 once set
	Reasoning   *string `json:"reasoning"`
	Status      *string `json:"status"` // "Qualified" | "Nurture" | null
}

// Validate checks the invariants a record must satisfy before it is stored.
func (c *Customer) Validate() error {
	if c.Name == "" {
		return &ErrValidation{Field: "name", Message: "name is required"}
	}
	if c.Email == "" {
		return &ErrValidation{Field: "email", Message: "email is required"}
	}
	if c.PastTouchpoints < 0 {
		return &ErrValidation{Field: "past_touchpoints", Message: "must be non-negative"}
	}
	if c.Budget != nil && *c.Budget != "" && *c.Budget != BudgetCompany && *c.Budget != BudgetSelf {
		return &ErrValidation{Field: "budget", Message: `must be "Company" or "Self"`}
	}
	return nil
}

// CustomerWithLeadTime is the read/export projection of a record: the
// record itself plus the derived lead-time in whole days.
type CustomerWithLeadTime struct {
	Customer
	LeadTimeDays *int `json:"lead_time_days"`
}

// WithLeadTime attaches the derived lead-time to the record. Applied on
// every read, list and export path so the projection never drifts from the
// stored created_at/closed_at pair.
func (c Customer) WithLeadTime() CustomerWithLeadTime {
	return CustomerWithLeadTime{Customer: c, LeadTimeDays: c.LeadTimeDays()}
}

// LeadTimeDays returns elapsed whole days between creation and closure.
// Nil until closed_at is set; clock skew (closed before created) yields 0,
// never a negative value.
func (c Customer) LeadTimeDays() *int {
	if c.ClosedAt == nil || c.ClosedAt.IsZero() {
		return nil
	}
	days := int(c.ClosedAt.Sub(c.CreatedAt.Time).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

// EngagedMinutes derives the engagement window length in minutes.
// Nil when either timestamp is absent; a leave before the join is a
// degenerate interval and counts as 0, not an error.
func EngagedMinutes(join, leave *Time) *int {
	if join == nil || leave == nil || join.IsZero() || leave.IsZero() {
		return nil
	}
	mins := 0
	if leave.After(join.Time) {
		mins = int(leave.Sub(join.Time).Seconds()) / 60
	}
	return &mins
}

// ClampScore forces a raw classifier score into [0, 100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// DeriveStatus is the single source of truth for qualification status:
// Qualified iff the score clears the threshold or the classifier text
// starts with a case-insensitive "qual" token, otherwise Nurture.
func DeriveStatus(rawStatus string, score int) string {
	if score >= QualifiedThreshold {
		return StatusQualified
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(rawStatus)), "qual") {
		return StatusQualified
	}
	return StatusNurture
}

// TokenUsage reports tokens consumed by one scoring call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ScoreResult is the parsed verdict of the external scoring service.
// Score and EngagedMins stay nil when the model omitted them or returned
// something non-numeric; the orchestrator applies the defaults.
type ScoreResult struct {
	EngagedMins *int
	Score       *int
	Reasoning   string
	Status      string
	Usage       TokenUsage
}

// QualificationEvent is published after a record is scored and persisted.
type QualificationEvent struct {
	EventID     string    `json:"event_id"`
	CustomerID  int       `json:"customer_id"`
	Score       int       `json:"score"`
	Status      string    `json:"status"`
	EngagedMins *int      `json:"engaged_mins"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// LeadTimeReport is the body of GET /v1/customers/{id}/lead-time.
type LeadTimeReport struct {
	ID           int  `json:"id"`
	LeadTimeDays *int `json:"lead_time_days"`
}

// ExportRow is one CSV-shaped row of the bulk export. Absent optionals are
// exported as empty strings, matching the dashboard's expectations.
type ExportRow struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
	Country         string `json:"country"`
	Goal            string `json:"goal"`
	Budget          string `json:"budget"`
	WebinarJoin     string `json:"webinar_join"`
	WebinarLeave    string `json:"webinar_leave"`
	AskedQuestion   bool   `json:"asked_q"`
	Referred        bool   `json:"referred"`
	PastTouchpoints int    `json:"past_touchpoints"`
	CreatedAt       string `json:"created_at"`
	ClosedAt        string `json:"closed_at"`
	EngagedMins     string `json:"engaged_mins"`
	Score           string `json:"score"`
	Reasoning       string `json:"reasoning"`
	Status          string `json:"status"`
	LeadTimeDays    string `json:"lead_time_days"`
}

// PipelineMetrics is the snapshot served by GET /v1/metrics/pipeline.
type PipelineMetrics struct {
	TotalQualifications int64   `json:"total_qualifications"`
	QualifiedRate       float64 `json:"qualified_rate"`
	ErrorRate           float64 `json:"error_rate"`
	AvgTokensPerRequest float64 `json:"avg_tokens_per_request"`
	EstimatedCostUsd    float64 `json:"estimated_cost_usd"`
	CacheHitRate        float64 `json:"cache_hit_rate"`
	Period              string  `json:"period"`
}
