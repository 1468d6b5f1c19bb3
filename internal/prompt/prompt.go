// Package prompt renders the lead-scoring prompt: a fixed rubric, three
// fixed few-shot example pairs, and the subject record's qualification
// fields. Rendering is deterministic: same record, same text.
package prompt

import (
	"encoding/json"
	"strings"

	"github.com/avasquez/leadqual/internal/domain"
)

// SystemInstruction is the system turn sent with every scoring request.
const SystemInstruction = "You are a precise scoring engine. Return ONLY a compact JSON object with keys: engaged_mins, score, reasoning, status."

const rubric = "You are a Lead Qualification Engine for 100xEngineers. Assess fit (0-50) and intent (0-50) " +
	"and return a total score (0-100) with concise reasoning and a status: Qualified or Nurture.\n\n" +
	"Fit factors: goal alignment, budget readiness (Company > Self), referral presence, geography relevance.\n" +
	"Intent factors: webinar engagement minutes, interaction (asked questions), past touchpoints, post-webinar action signals.\n\n" +
	"Scoring bands: 80-100 Strongly Qualified; 60-79 Qualified; 40-59 Nurture; <40 Disqualified (map to Nurture).\n"

// subject carries the qualification-relevant fields of the record being
// scored, in the exact key order the examples use.
type subject struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	Goal            *string `json:"goal"`
	Budget          *string `json:"budget"`
	Country         *string `json:"country"`
	WebinarJoin     *string `json:"webinar_join"`
	WebinarLeave    *string `json:"webinar_leave"`
	AskedQuestion   bool    `json:"asked_q"`
	Referred        bool    `json:"referred"`
	PastTouchpoints int     `json:"past_touchpoints"`
}

type exampleOutput struct {
	EngagedMins int    `json:"engaged_mins"`
	Score       int    `json:"score"`
	Reasoning   string `json:"reasoning"`
	Status      string `json:"status"`
}

type fewShot struct {
	Input  subject       `json:"input"`
	Output exampleOutput `json:"output"`
}

func strPtr(s string) *string { return &s }

// fewShots are the three calibration pairs: a strong company-funded
// referral, a middling self-funded founder, and a casual browser.
var fewShots = []fewShot{
	{
		Input: subject{
			ID: 1, Name: "Aditi Sharma",
			Goal: strPtr("Become AI Product Manager"), Budget: strPtr(domain.BudgetCompany), Country: strPtr("India"),
			WebinarJoin: strPtr("2025-09-10T15:00:00"), WebinarLeave: strPtr("2025-09-10T16:25:00"),
			AskedQuestion: true, Referred: true, PastTouchpoints: 3,
		},
		Output: exampleOutput{
			EngagedMins: 85, Score: 92,
			Reasoning: "Strong fit (goal aligns with program, company-funded, referral). High intent (85 mins attended, asked question, 3 prior touchpoints).",
			Status:    domain.StatusQualified,
		},
	},
	{
		Input: subject{
			ID: 2, Name: "John Lee",
			Goal: strPtr("Explore AI for my startup"), Budget: strPtr(domain.BudgetSelf), Country: strPtr("USA"),
			WebinarJoin: strPtr("2025-09-10T15:05:00"), WebinarLeave: strPtr("2025-09-10T15:45:00"),
			AskedQuestion: false, Referred: false, PastTouchpoints: 1,
		},
		Output: exampleOutput{
			EngagedMins: 40, Score: 68,
			Reasoning: "Good fit (entrepreneurial goal, willing to self-fund). Medium intent (40 mins engaged, no Qs asked, 1 prior touchpoint).",
			Status:    domain.StatusQualified,
		},
	},
	{
		Input: subject{
			ID: 3, Name: "Maria Gonzales",
			Goal: strPtr("Just exploring AI trends"), Budget: strPtr(domain.BudgetSelf), Country: strPtr("Mexico"),
			WebinarJoin: strPtr("2025-09-10T15:20:00"), WebinarLeave: strPtr("2025-09-10T15:40:00"),
			AskedQuestion: false, Referred: false, PastTouchpoints: 0,
		},
		Output: exampleOutput{
			EngagedMins: 20, Score: 38,
			Reasoning: "Weak fit (unclear career goal, self-funded). Low intent (20 mins attended, no interactions, no prior touchpoints).",
			Status:    domain.StatusNurture,
		},
	},
}

// Build renders the full user-turn prompt for one record.
func Build(c *domain.Customer) string {
	examples, _ := json.Marshal(fewShots)
	record, _ := json.Marshal(subjectFrom(c))

	var b strings.Builder
	b.WriteString(rubric)
	b.WriteString("Few-shot examples (JSON):\n")
	b.Write(examples)
	b.WriteString("\n\nNow score this customer (JSON with keys: engaged_mins, score, reasoning, status).\n")
	b.Write(record)
	return b.String()
}

func subjectFrom(c *domain.Customer) subject {
	return subject{
		ID:              c.ID,
		Name:            c.Name,
		Goal:            c.Goal,
		Budget:          c.Budget,
		Country:         c.Country,
		WebinarJoin:     formatTime(c.WebinarJoin),
		WebinarLeave:    formatTime(c.WebinarLeave),
		AskedQuestion:   c.AskedQuestion,
		Referred:        c.Referred,
		PastTouchpoints: c.PastTouchpoints,
	}
}

func formatTime(t *domain.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.Format("2006-01-02T15:04:05")
	return &s
}
