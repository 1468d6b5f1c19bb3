package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/avasquez/leadqual/internal/domain"
	"github.com/avasquez/leadqual/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// customerID pulls and validates the {id} route parameter.
func customerID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid customer id: "+raw)
		return 0, false
	}
	return id, true
}

func createCustomerHandler(svc *service.Customers, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/customers")
		defer span.End()

		var c domain.Customer
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		span.SetAttributes(attribute.Int("customer.id", c.ID))

		created, err := svc.Create(ctx, c)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func listCustomersHandler(svc *service.Customers, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customers, err := svc.List(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, customers)
	}
}

func getCustomerHandler(svc *service.Customers, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := customerID(w, r)
		if !ok {
			return
		}

		customer, err := svc.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, customer)
	}
}

func updateCustomerHandler(svc *service.Customers, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := customerID(w, r)
		if !ok {
			return
		}

		var c domain.Customer
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		updated, err := svc.Replace(r.Context(), id, c)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteCustomerHandler(svc *service.Customers, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := customerID(w, r)
		if !ok {
			return
		}

		deleted, err := svc.Delete(r.Context(), id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, deleted)
	}
}

func leadTimeHandler(svc *service.Customers, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := customerID(w, r)
		if !ok {
			return
		}

		report, err := svc.LeadTime(r.Context(), id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func qualifyCustomerHandler(qualifier *service.Qualifier, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/customers/{id}/qualify")
		defer span.End()

		id, ok := customerID(w, r)
		if !ok {
			return
		}
		span.SetAttributes(attribute.Int("customer.id", id))

		qualified, err := qualifier.Qualify(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, qualified)
	}
}

type exportResponse struct {
	Message string             `json:"message"`
	Data    []domain.ExportRow `json:"data"`
}

func exportCustomersHandler(svc *service.Customers, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.ExportCSV(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, exportResponse{
			Message: "CSV data exported successfully",
			Data:    rows,
		})
	}
}
