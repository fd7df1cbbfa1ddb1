package service

import (
	"context"
	"log/slog"
	"sort"

	"payment-transactions/internal/domain"
	"payment-transactions/internal/errors"
	"payment-transactions/internal/mapper"
)

// Authorizer is the external collaborator that grants a payment its nsu and
// authorization code.
type Authorizer interface {
	Authorize(ctx context.Context, t *domain.Transaction) (nsu string, authorizationCode string, err error)
}

// TransactionService orchestrates the durable store and the flat cache.
// Reads hit the cache first and fall back to the store on a miss, populating
// the cache on the way out; the store is the system of record and the cache
// an on-demand accelerator. Writes go to the store and are then pushed to
// the cache.
type TransactionService struct {
	repo       domain.TransactionRepository
	cache      domain.TransactionCache
	authorizer Authorizer
	logger     *slog.Logger
}

func NewTransactionService(
	repo domain.TransactionRepository,
	cache domain.TransactionCache,
	authorizer Authorizer,
	logger *slog.Logger,
) *TransactionService {
	return &TransactionService{
		repo:       repo,
		cache:      cache,
		authorizer: authorizer,
		logger:     logger,
	}
}

func (s *TransactionService) FindByID(ctx context.Context, id int64) (*mapper.TransactionView, error) {
	t, err := s.findAggregate(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapper.ToView(t), nil
}

func (s *TransactionService) findAggregate(ctx context.Context, id int64) (*domain.Transaction, error) {
	fields, err := s.cache.GetFields(ctx, domain.CacheKey(id))
	if err == nil {
		return mapper.TransactionFromFields(fields)
	}
	if err != errors.ErrTransactionNotFound {
		return nil, err
	}

	// Cache miss: the durable store decides existence. A store hit
	// repopulates the cache so the next lookup is a cache hit.
	t, err := s.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetAggregate(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("Cache populated from store", "transaction_id", id)
	return t, nil
}

// FindAll returns every transaction mirrored in the cache, falling back to
// the store when the cache namespace is empty. Zero transactions is a
// not-found error, not an empty list.
func (s *TransactionService) FindAll(ctx context.Context) ([]*mapper.TransactionView, error) {
	keys, err := s.cache.ListKeys(ctx, domain.CacheKeyPattern)
	if err != nil {
		return nil, err
	}

	views := make([]*mapper.TransactionView, 0, len(keys))
	for _, key := range keys {
		fields, err := s.cache.GetFields(ctx, key)
		if err == errors.ErrTransactionNotFound {
			// Key vanished between scan and fetch.
			continue
		}
		if err != nil {
			return nil, err
		}
		t, err := mapper.TransactionFromFields(fields)
		if err != nil {
			return nil, err
		}
		views = append(views, mapper.ToView(t))
	}

	if len(views) == 0 {
		transactions, err := s.repo.FindAll()
		if err != nil {
			return nil, err
		}
		for _, t := range transactions {
			if err := s.cache.SetAggregate(ctx, t); err != nil {
				return nil, err
			}
			views = append(views, mapper.ToView(t))
		}
	}

	if len(views) == 0 {
		return nil, errors.ErrTransactionNotFound
	}

	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views, nil
}

// Pay authorizes and persists a new transaction. The submission must carry
// no store-assigned identifiers and no authorization fields; a violation is
// rejected before the store or cache is touched.
func (s *TransactionService) Pay(ctx context.Context, t *domain.Transaction) (*mapper.TransactionView, error) {
	if t.Description == nil || t.PaymentMethod == nil {
		return nil, errors.NewAppError(errors.InvalidInput, "description and payment method are required")
	}
	if err := validateCleanSubmission(t); err != nil {
		return nil, err
	}

	nsu, authorizationCode, err := s.authorizer.Authorize(ctx, t)
	if err != nil {
		return nil, err
	}

	t.Description.Nsu = nsu
	t.Description.AuthorizationCode = authorizationCode
	t.Description.Status = domain.StatusAuthorized

	saved, err := s.repo.Save(t)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetAggregate(ctx, saved); err != nil {
		return nil, err
	}

	s.logger.Info("Payment authorized",
		"transaction_id", saved.ID,
		"merchant", saved.Description.Merchant,
		"amount", saved.Description.Amount)
	return mapper.ToView(saved), nil
}

// Reverse denies an authorized transaction. The description is persisted
// first, then the single description::status cache field is updated. If the
// cache key is gone at update time the reversal reports not-found even
// though the store write already succeeded; the two stores may momentarily
// diverge and the divergence surfaces on the cache side, not as a rollback.
func (s *TransactionService) Reverse(ctx context.Context, id int64) (*mapper.TransactionView, error) {
	t, err := s.findAggregate(ctx, id)
	if err != nil {
		return nil, err
	}

	if t.Description.Status != domain.StatusAuthorized {
		s.logger.Warn("Reversal rejected", "transaction_id", id, "status", t.Description.Status)
		return nil, errors.ErrReversalNotAllowed
	}

	t.Description.Status = domain.StatusDenied
	if _, err := s.repo.SaveDescription(t.Description); err != nil {
		return nil, err
	}

	fields, err := s.cache.SetField(ctx, domain.CacheKey(id), mapper.FieldDescriptionStatus, string(domain.StatusDenied))
	if err != nil {
		return nil, err
	}

	updated, err := mapper.TransactionFromFields(fields)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Transaction reversed", "transaction_id", id)
	return mapper.ToView(updated), nil
}

func validateCleanSubmission(t *domain.Transaction) error {
	if t.ID != 0 || t.Description.ID != 0 || t.PaymentMethod.ID != 0 {
		return errors.ErrInsertionNotAllowed
	}
	if t.Description.Nsu != "" || t.Description.AuthorizationCode != "" || t.Description.Status != "" {
		return errors.ErrInsertionNotAllowed
	}
	return nil
}
