package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"payment-transactions/internal/domain"
	"payment-transactions/internal/errors"
	"payment-transactions/internal/service"
)

type TransactionHandler struct {
	transactionService *service.TransactionService
}

func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

// PaymentRequest mirrors the full aggregate shape. The store-assigned and
// authorization fields are decoded too, so a submission that illegally
// carries them reaches the service and is rejected there.
type PaymentRequest struct {
	ID            int64                 `json:"id,omitempty"`
	Card          string                `json:"card"`
	Description   *DescriptionRequest   `json:"description"`
	PaymentMethod *PaymentMethodRequest `json:"paymentMethod"`
}

type DescriptionRequest struct {
	ID                int64  `json:"id,omitempty"`
	Amount            string `json:"amount"`
	Timestamp         string `json:"timestamp"`
	Merchant          string `json:"merchant"`
	Nsu               string `json:"nsu,omitempty"`
	AuthorizationCode string `json:"authorizationCode,omitempty"`
	Status            string `json:"status,omitempty"`
}

type PaymentMethodRequest struct {
	ID               int64  `json:"id,omitempty"`
	Type             string `json:"type"`
	InstallmentCount string `json:"installmentCount"`
}

func (h *TransactionHandler) FindByID(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid transaction id"))
		return
	}

	view, err := h.transactionService.FindByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *TransactionHandler) FindAll(w http.ResponseWriter, r *http.Request) {
	views, err := h.transactionService.FindAll(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, views)
}

func (h *TransactionHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	if err := validatePaymentRequest(&req); err != nil {
		writeError(w, err)
		return
	}

	transaction := &domain.Transaction{
		ID:   req.ID,
		Card: req.Card,
		Description: &domain.Description{
			ID:                req.Description.ID,
			Amount:            req.Description.Amount,
			Timestamp:         req.Description.Timestamp,
			Merchant:          req.Description.Merchant,
			Nsu:               req.Description.Nsu,
			AuthorizationCode: req.Description.AuthorizationCode,
			Status:            domain.Status(req.Description.Status),
		},
		PaymentMethod: &domain.PaymentMethod{
			ID:               req.PaymentMethod.ID,
			Type:             domain.PaymentType(req.PaymentMethod.Type),
			InstallmentCount: req.PaymentMethod.InstallmentCount,
		},
	}

	view, err := h.transactionService.Pay(r.Context(), transaction)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *TransactionHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid transaction id"))
		return
	}

	view, err := h.transactionService.Reverse(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func validatePaymentRequest(req *PaymentRequest) *errors.AppError {
	if req.Card == "" {
		return errors.NewAppError(errors.InvalidInput, "card is required")
	}
	if req.Description == nil {
		return errors.NewAppError(errors.InvalidInput, "description is required")
	}
	if req.Description.Timestamp == "" || req.Description.Merchant == "" {
		return errors.NewAppError(errors.InvalidInput, "description timestamp and merchant are required")
	}
	if _, err := decimal.NewFromString(req.Description.Amount); err != nil {
		return errors.NewAppError(errors.InvalidInput, "invalid amount format").WithDetails(err.Error())
	}
	if req.PaymentMethod == nil {
		return errors.NewAppError(errors.InvalidInput, "payment method is required")
	}
	switch domain.PaymentType(req.PaymentMethod.Type) {
	case domain.PaymentTypeCash, domain.PaymentTypeInstallmentMerchant, domain.PaymentTypeInstallmentIssuer:
	default:
		return errors.NewAppError(errors.InvalidInput, "invalid payment method type")
	}
	if _, err := strconv.Atoi(req.PaymentMethod.InstallmentCount); err != nil {
		return errors.NewAppError(errors.InvalidInput, "invalid installment count").WithDetails(err.Error())
	}
	return nil
}
