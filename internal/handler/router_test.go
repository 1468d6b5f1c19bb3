package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avasquez/leadqual/internal/domain"
	"github.com/avasquez/leadqual/internal/handler"
	"github.com/avasquez/leadqual/internal/infra/cache"
	"github.com/avasquez/leadqual/internal/infra/observability"
	"github.com/avasquez/leadqual/internal/infra/store/memory"
	"github.com/avasquez/leadqual/internal/service"

	"go.uber.org/zap"
)

type stubScorer struct {
	result *domain.ScoreResult
	err    error
}

func (s *stubScorer) Score(_ context.Context, _ string) (*domain.ScoreResult, error) {
	return s.result, s.err
}

func intPtr(v int) *int { return &v }

func newTestRouter(scorer *stubScorer) (http.Handler, *memory.Store) {
	store := memory.New()
	customerCache := cache.New[*domain.Customer](time.Minute)
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	customersSvc := service.NewCustomers(store, customerCache, metrics, logger)
	qualifierSvc := service.NewQualifier(store, scorer, customerCache, nil, metrics, logger)

	return handler.NewRouter(customersSvc, qualifierSvc, store, metrics, logger), store
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func leadBody() map[string]any {
	return map[string]any{
		"id": 1, "name": "Aditi Sharma", "email": "aditi@example.com",
		"goal": "Become AI Product Manager", "budget": "Company",
		"webinar_join": "2025-09-10T15:00:00", "webinar_leave": "2025-09-10T16:25:00",
		"asked_q": true, "referred": true, "past_touchpoints": 3,
	}
}

func TestCreateCustomer(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{})

	rec := doJSON(t, router, http.MethodPost, "/v1/customers", leadBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var got domain.CustomerWithLeadTime
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != 1 || got.Name != "Aditi Sharma" {
		t.Errorf("unexpected record %d %q", got.ID, got.Name)
	}
	if got.LeadTimeDays != nil {
		t.Error("expected null lead_time_days on an open record")
	}
}

func TestCreateCustomer_Duplicate(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{})

	if rec := doJSON(t, router, http.MethodPost, "/v1/customers", leadBody()); rec.Code != http.StatusCreated {
		t.Fatalf("first create: %d", rec.Code)
	}
	rec := doJSON(t, router, http.MethodPost, "/v1/customers", leadBody())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate id, got %d", rec.Code)
	}
}

func TestCreateCustomer_InvalidBody(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{})

	req := httptest.NewRequest(http.MethodPost, "/v1/customers", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateCustomer_MissingName(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{})

	body := leadBody()
	body["name"] = ""
	rec := doJSON(t, router, http.MethodPost, "/v1/customers", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetCustomer_NotFound(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{})

	rec := doJSON(t, router, http.MethodGet, "/v1/customers/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetCustomer_BadID(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{})

	rec := doJSON(t, router, http.MethodGet, "/v1/customers/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListCustomers(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{})

	doJSON(t, router, http.MethodPost, "/v1/customers", leadBody())
	second := leadBody()
	second["id"] = 2
	second["email"] = "second@example.com"
	doJSON(t, router, http.MethodPost, "/v1/customers", second)

	rec := doJSON(t, router, http.MethodGet, "/v1/customers", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []domain.CustomerWithLeadTime
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 records, got %d", len(got))
	}
}

func TestUpdateAndDeleteCustomer(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{})

	doJSON(t, router, http.MethodPost, "/v1/customers", leadBody())

	updated := leadBody()
	updated["name"] = "Aditi S."
	rec := doJSON(t, router, http.MethodPut, "/v1/customers/1", updated)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, "/v1/customers/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	var deleted domain.CustomerWithLeadTime
	if err := json.Unmarshal(rec.Body.Bytes(), &deleted); err != nil {
		t.Fatal(err)
	}
	if deleted.Name != "Aditi S." {
		t.Errorf("expected the deleted record back, got %q", deleted.Name)
	}

	if rec := doJSON(t, router, http.MethodGet, "/v1/customers/1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestQualifyCustomer(t *testing.T) {
	scorer := &stubScorer{result: &domain.ScoreResult{
		Score: intPtr(92), Reasoning: "strong fit", Status: "Qualified",
		Usage: domain.TokenUsage{TotalTokens: 540},
	}}
	router, _ := newTestRouter(scorer)

	doJSON(t, router, http.MethodPost, "/v1/customers", leadBody())

	rec := doJSON(t, router, http.MethodPost, "/v1/customers/1/qualify", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got domain.CustomerWithLeadTime
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Score == nil || *got.Score != 92 {
		t.Errorf("expected score 92, got %v", got.Score)
	}
	if got.Status == nil || *got.Status != domain.StatusQualified {
		t.Errorf("expected Qualified, got %v", got.Status)
	}
	if got.EngagedMins == nil || *got.EngagedMins != 85 {
		t.Errorf("expected 85 engaged mins, got %v", got.EngagedMins)
	}
}

func TestQualifyCustomer_NotFound(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{result: &domain.ScoreResult{Score: intPtr(50)}})

	rec := doJSON(t, router, http.MethodPost, "/v1/customers/999/qualify", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestQualifyCustomer_UpstreamFailure(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{err: &domain.ErrScoringService{Status: 503, Message: "unavailable"}})

	doJSON(t, router, http.MethodPost, "/v1/customers", leadBody())

	rec := doJSON(t, router, http.MethodPost, "/v1/customers/1/qualify", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestQualifyCustomer_MissingAPIKey(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{err: &domain.ErrConfiguration{Setting: "GROQ_API_KEY"}})

	doJSON(t, router, http.MethodPost, "/v1/customers", leadBody())

	rec := doJSON(t, router, http.MethodPost, "/v1/customers/1/qualify", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestLeadTime(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{})

	body := leadBody()
	body["created_at"] = "2025-01-01T00:00:00Z"
	body["closed_at"] = "2025-01-11T00:00:00Z"
	doJSON(t, router, http.MethodPost, "/v1/customers", body)

	rec := doJSON(t, router, http.MethodGet, "/v1/customers/1/lead-time", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var report domain.LeadTimeReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.LeadTimeDays == nil || *report.LeadTimeDays != 10 {
		t.Errorf("expected 10 days, got %v", report.LeadTimeDays)
	}
}

func TestExportCSV(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{})

	doJSON(t, router, http.MethodPost, "/v1/customers", leadBody())

	rec := doJSON(t, router, http.MethodGet, "/v1/customers/export/csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Message string             `json:"message"`
		Data    []domain.ExportRow `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message != "CSV data exported successfully" {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if len(resp.Data) != 1 || resp.Data[0].ID != 1 {
		t.Errorf("unexpected export payload %+v", resp.Data)
	}
}

func TestExportCSV_Empty(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{})

	rec := doJSON(t, router, http.MethodGet, "/v1/customers/export/csv", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for empty export, got %d", rec.Code)
	}
}

func TestPipelineMetricsSnapshot(t *testing.T) {
	scorer := &stubScorer{result: &domain.ScoreResult{
		Score: intPtr(92), Status: "Qualified",
		Usage: domain.TokenUsage{PromptTokens: 500, CompletionTokens: 40, TotalTokens: 540},
	}}
	router, _ := newTestRouter(scorer)

	doJSON(t, router, http.MethodPost, "/v1/customers", leadBody())
	doJSON(t, router, http.MethodPost, "/v1/customers/1/qualify", nil)

	rec := doJSON(t, router, http.MethodGet, "/v1/metrics/pipeline", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snapshot domain.PipelineMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatal(err)
	}
	if snapshot.TotalQualifications != 1 {
		t.Errorf("expected 1 qualification, got %d", snapshot.TotalQualifications)
	}
	if snapshot.QualifiedRate != 1 {
		t.Errorf("expected qualified rate 1, got %f", snapshot.QualifiedRate)
	}
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{})

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{})

	rec := doJSON(t, router, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{})

	rec := doJSON(t, router, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestPing(t *testing.T) {
	router, _ := newTestRouter(&stubScorer{})

	rec := doJSON(t, router, http.MethodGet, "/ping", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
