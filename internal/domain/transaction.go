package domain

import (
	"context"
	"fmt"
)

// Status is the authorization state of a transaction. It is unset until the
// payment is authorized and moves only AUTHORIZED -> DENIED on reversal.
type Status string

const (
	StatusAuthorized Status = "AUTHORIZED"
	StatusDenied     Status = "DENIED"
)

// PaymentType is the payment arrangement chosen by the cardholder.
type PaymentType string

const (
	PaymentTypeCash                PaymentType = "CASH"
	PaymentTypeInstallmentMerchant PaymentType = "INSTALLMENT_MERCHANT"
	PaymentTypeInstallmentIssuer   PaymentType = "INSTALLMENT_ISSUER"
)

// Transaction is the aggregate root. It exclusively owns its Description and
// PaymentMethod; the three are stored and cached as a single unit.
type Transaction struct {
	ID            int64
	Card          string
	Description   *Description
	PaymentMethod *PaymentMethod
}

type Description struct {
	ID                int64
	Amount            string
	Timestamp         string
	Merchant          string
	Nsu               string
	AuthorizationCode string
	Status            Status
}

type PaymentMethod struct {
	ID               int64
	Type             PaymentType
	InstallmentCount string
}

// CacheKey is the cache key under which a transaction's flattened fields live.
func CacheKey(id int64) string {
	return fmt.Sprintf("transaction::%d", id)
}

// CacheKeyPattern matches every transaction key in the cache namespace.
const CacheKeyPattern = "transaction::*"

type TransactionRepository interface {
	// Save persists the whole aggregate and assigns store-generated ids.
	Save(t *Transaction) (*Transaction, error)
	FindByID(id int64) (*Transaction, error)
	FindAll() ([]*Transaction, error)
	// SaveDescription persists only the description sub-entity. A description
	// that already carries an id is updated in place, not inserted.
	SaveDescription(d *Description) (*Description, error)
}

// TransactionCache is the flat key->field-map cache holding a denormalized
// mirror of a transaction aggregate. Absent keys surface as a not-found
// error; the cache offers no transactions across keys.
type TransactionCache interface {
	Exists(ctx context.Context, key string) (bool, error)
	GetFields(ctx context.Context, key string) (map[string]string, error)
	// SetAggregate overwrites the whole field map for the transaction's key.
	SetAggregate(ctx context.Context, t *Transaction) error
	// SetField updates a single field on an existing key and returns the
	// updated field map. An absent key is a not-found error, never an upsert.
	SetField(ctx context.Context, key, field, value string) (map[string]string, error)
	ListKeys(ctx context.Context, pattern string) ([]string, error)
}
