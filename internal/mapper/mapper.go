// Package mapper holds the explicit conversions between the transaction
// aggregate, its flat cache representation and its public view. There is one
// function per direction; no reflective copying.
package mapper

import (
	"strconv"

	"payment-transactions/internal/domain"
	"payment-transactions/internal/errors"
)

// Flat field names. Nested attributes use the parent::field convention so a
// whole aggregate fits in a single key->string map.
const (
	FieldID   = "id"
	FieldCard = "card"

	FieldDescriptionID                = "description::id"
	FieldDescriptionAmount            = "description::amount"
	FieldDescriptionTimestamp         = "description::timestamp"
	FieldDescriptionMerchant          = "description::merchant"
	FieldDescriptionNsu               = "description::nsu"
	FieldDescriptionAuthorizationCode = "description::authorizationCode"
	FieldDescriptionStatus            = "description::status"

	FieldPaymentMethodID               = "paymentMethod::id"
	FieldPaymentMethodType             = "paymentMethod::type"
	FieldPaymentMethodInstallmentCount = "paymentMethod::installmentCount"
)

// Flatten serializes every leaf attribute of the aggregate into its canonical
// string form. Enum fields are serialized by name.
func Flatten(t *domain.Transaction) map[string]string {
	return map[string]string{
		FieldID:   strconv.FormatInt(t.ID, 10),
		FieldCard: t.Card,

		FieldDescriptionID:                strconv.FormatInt(t.Description.ID, 10),
		FieldDescriptionAmount:            t.Description.Amount,
		FieldDescriptionTimestamp:         t.Description.Timestamp,
		FieldDescriptionMerchant:          t.Description.Merchant,
		FieldDescriptionNsu:               t.Description.Nsu,
		FieldDescriptionAuthorizationCode: t.Description.AuthorizationCode,
		FieldDescriptionStatus:            string(t.Description.Status),

		FieldPaymentMethodID:               strconv.FormatInt(t.PaymentMethod.ID, 10),
		FieldPaymentMethodType:             string(t.PaymentMethod.Type),
		FieldPaymentMethodInstallmentCount: t.PaymentMethod.InstallmentCount,
	}
}

// TransactionFromFields rebuilds the aggregate from its flat representation.
// Identifier fields must parse as decimal integers; a malformed id is an
// infrastructure error. An unrecognized enum name leaves the field unset.
func TransactionFromFields(fields map[string]string) (*domain.Transaction, error) {
	id, err := parseID(fields, FieldID)
	if err != nil {
		return nil, err
	}
	descriptionID, err := parseID(fields, FieldDescriptionID)
	if err != nil {
		return nil, err
	}
	paymentMethodID, err := parseID(fields, FieldPaymentMethodID)
	if err != nil {
		return nil, err
	}

	return &domain.Transaction{
		ID:   id,
		Card: fields[FieldCard],
		Description: &domain.Description{
			ID:                descriptionID,
			Amount:            fields[FieldDescriptionAmount],
			Timestamp:         fields[FieldDescriptionTimestamp],
			Merchant:          fields[FieldDescriptionMerchant],
			Nsu:               fields[FieldDescriptionNsu],
			AuthorizationCode: fields[FieldDescriptionAuthorizationCode],
			Status:            parseStatus(fields[FieldDescriptionStatus]),
		},
		PaymentMethod: &domain.PaymentMethod{
			ID:               paymentMethodID,
			Type:             parsePaymentType(fields[FieldPaymentMethodType]),
			InstallmentCount: fields[FieldPaymentMethodInstallmentCount],
		},
	}, nil
}

func parseID(fields map[string]string, field string) (int64, error) {
	id, err := strconv.ParseInt(fields[field], 10, 64)
	if err != nil {
		return 0, errors.NewAppError(errors.InternalError, "malformed cache entry").
			WithDetails("field " + field + ": " + err.Error())
	}
	return id, nil
}

func parseStatus(name string) domain.Status {
	switch name {
	case string(domain.StatusAuthorized):
		return domain.StatusAuthorized
	case string(domain.StatusDenied):
		return domain.StatusDenied
	}
	return ""
}

func parsePaymentType(name string) domain.PaymentType {
	switch name {
	case string(domain.PaymentTypeCash):
		return domain.PaymentTypeCash
	case string(domain.PaymentTypeInstallmentMerchant):
		return domain.PaymentTypeInstallmentMerchant
	case string(domain.PaymentTypeInstallmentIssuer):
		return domain.PaymentTypeInstallmentIssuer
	}
	return ""
}
