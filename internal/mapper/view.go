package mapper

import (
	"payment-transactions/internal/domain"
)

// TransactionView is the public shape of a transaction returned to callers.
type TransactionView struct {
	ID            int64              `json:"id"`
	Card          string             `json:"card"`
	Description   *DescriptionView   `json:"description"`
	PaymentMethod *PaymentMethodView `json:"paymentMethod"`
}

type DescriptionView struct {
	ID                int64  `json:"id"`
	Amount            string `json:"amount"`
	Timestamp         string `json:"timestamp"`
	Merchant          string `json:"merchant"`
	Nsu               string `json:"nsu,omitempty"`
	AuthorizationCode string `json:"authorizationCode,omitempty"`
	Status            string `json:"status,omitempty"`
}

type PaymentMethodView struct {
	ID               int64  `json:"id"`
	Type             string `json:"type"`
	InstallmentCount string `json:"installmentCount"`
}

func ToView(t *domain.Transaction) *TransactionView {
	return &TransactionView{
		ID:   t.ID,
		Card: t.Card,
		Description: &DescriptionView{
			ID:                t.Description.ID,
			Amount:            t.Description.Amount,
			Timestamp:         t.Description.Timestamp,
			Merchant:          t.Description.Merchant,
			Nsu:               t.Description.Nsu,
			AuthorizationCode: t.Description.AuthorizationCode,
			Status:            string(t.Description.Status),
		},
		PaymentMethod: &PaymentMethodView{
			ID:               t.PaymentMethod.ID,
			Type:             string(t.PaymentMethod.Type),
			InstallmentCount: t.PaymentMethod.InstallmentCount,
		},
	}
}
