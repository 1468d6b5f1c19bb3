package prompt_test

import (
	"strings"
	"testing"

	"github.com/avasquez/leadqual/internal/domain"
	"github.com/avasquez/leadqual/internal/prompt"
)

func sampleCustomer(t *testing.T) *domain.Customer {
	t.Helper()
	join, err := domain.ParseTime("2025-09-10T15:00:00")
	if err != nil {
		t.Fatal(err)
	}
	leave, err := domain.ParseTime("2025-09-10T16:25:00")
	if err != nil {
		t.Fatal(err)
	}
	goal := "Become AI Product Manager"
	budget := domain.BudgetCompany
	country := "India"
	return &domain.Customer{
		ID: 42, Name: "Asha Patel", Email: "asha@example.com",
		Goal: &goal, Budget: &budget, Country: &country,
		WebinarJoin: &join, WebinarLeave: &leave,
		AskedQuestion: true, Referred: true, PastTouchpoints: 3,
	}
}

func TestBuildContainsSubjectFields(t *testing.T) {
	got := prompt.Build(sampleCustomer(t))

	for _, want := range []string{
		`"id":42`,
		`"name":"Asha Patel"`,
		`"goal":"Become AI Product Manager"`,
		`"budget":"Company"`,
		`"webinar_join":"2025-09-10T15:00:00"`,
		`"past_touchpoints":3`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %s", want)
		}
	}
}

func TestBuildContainsRubricAndExamples(t *testing.T) {
	got := prompt.Build(sampleCustomer(t))

	if !strings.Contains(got, "Lead Qualification Engine") {
		t.Error("prompt missing rubric")
	}
	for _, name := range []string{"Aditi Sharma", "John Lee", "Maria Gonzales"} {
		if !strings.Contains(got, name) {
			t.Errorf("prompt missing few-shot example %s", name)
		}
	}
	if !strings.Contains(got, "Now score this customer") {
		t.Error("prompt missing scoring directive")
	}
}

func TestBuildDeterministic(t *testing.T) {
	c := sampleCustomer(t)
	if prompt.Build(c) != prompt.Build(c) {
		t.Fatal("expected identical prompts for the same record")
	}
}

func TestBuildOmitsAbsentOptionals(t *testing.T) {
	c := &domain.Customer{ID: 5, Name: "Bare", Email: "bare@example.com"}
	got := prompt.Build(c)

	// The subject is the last JSON object; absent optionals marshal as null.
	idx := strings.LastIndex(got, `"id":5`)
	if idx < 0 {
		t.Fatal("prompt missing subject record")
	}
	tail := got[idx:]
	for _, want := range []string{`"goal":null`, `"webinar_join":null`, `"webinar_leave":null`} {
		if !strings.Contains(tail, want) {
			t.Errorf("subject missing %s", want)
		}
	}
}
