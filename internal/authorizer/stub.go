// Package authorizer provides the payment authorizer collaborator. The real
// network authorizer lives outside this service; Stub answers every request
// with the canonical test values.
package authorizer

import (
	"context"

	"payment-transactions/internal/domain"
)

const (
	stubNsu               = "1234567890"
	stubAuthorizationCode = "147258369"
)

type Stub struct{}

func NewStub() *Stub {
	return &Stub{}
}

func (s *Stub) Authorize(ctx context.Context, t *domain.Transaction) (string, string, error) {
	return stubNsu, stubAuthorizationCode, nil
}
