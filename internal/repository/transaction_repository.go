package repository

import (
	"database/sql"
	"log/slog"

	"payment-transactions/internal/domain"
	"payment-transactions/internal/errors"
)

// transactionRepository persists the transaction aggregate across the
// transacao, descricao and forma_pagamento tables. Identifiers come from
// the per-table sequences defined in the migrations.
type transactionRepository struct {
	db     DB
	logger *slog.Logger
}

func NewTransactionRepository(db DB, logger *slog.Logger) domain.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

// Save inserts the whole aggregate inside one database transaction so a
// partial write never leaves an orphaned description or payment method.
func (r *transactionRepository) Save(t *domain.Transaction) (*domain.Transaction, error) {
	tx, err := r.db.Begin()
	if err != nil {
		r.logger.Error("Failed to begin transaction", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to save transaction").WithDetails(err.Error())
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	saved, err := r.saveAggregate(&TxWrapper{Tx: tx}, t)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit transaction", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to save transaction").WithDetails(err.Error())
	}

	r.logger.Info("Transaction saved", "transaction_id", saved.ID)
	return saved, nil
}

func (r *transactionRepository) saveAggregate(exec SQLExecutor, t *domain.Transaction) (*domain.Transaction, error) {
	descriptionQuery := `
		INSERT INTO descricao (amount, occurred_at, merchant, nsu, authorization_code, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := exec.QueryRow(
		descriptionQuery,
		t.Description.Amount,
		t.Description.Timestamp,
		t.Description.Merchant,
		nullString(t.Description.Nsu),
		nullString(t.Description.AuthorizationCode),
		nullString(string(t.Description.Status)),
	).Scan(&t.Description.ID)
	if err != nil {
		r.logger.Error("Failed to insert description", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to save transaction").WithDetails(err.Error())
	}

	paymentMethodQuery := `
		INSERT INTO forma_pagamento (type, installment_count)
		VALUES ($1, $2)
		RETURNING id
	`

	err = exec.QueryRow(
		paymentMethodQuery,
		string(t.PaymentMethod.Type),
		t.PaymentMethod.InstallmentCount,
	).Scan(&t.PaymentMethod.ID)
	if err != nil {
		r.logger.Error("Failed to insert payment method", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to save transaction").WithDetails(err.Error())
	}

	transactionQuery := `
		INSERT INTO transacao (card, descricao_id, forma_pagamento_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err = exec.QueryRow(
		transactionQuery,
		t.Card,
		t.Description.ID,
		t.PaymentMethod.ID,
	).Scan(&t.ID)
	if err != nil {
		r.logger.Error("Failed to insert transaction", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to save transaction").WithDetails(err.Error())
	}

	return t, nil
}

const selectTransaction = `
	SELECT t.id, t.card,
	       d.id, d.amount, d.occurred_at, d.merchant, d.nsu, d.authorization_code, d.status,
	       f.id, f.type, f.installment_count
	FROM transacao t
	JOIN descricao d ON d.id = t.descricao_id
	JOIN forma_pagamento f ON f.id = t.forma_pagamento_id
`

func (r *transactionRepository) FindByID(id int64) (*domain.Transaction, error) {
	row := r.db.QueryRow(selectTransaction+" WHERE t.id = $1", id)

	t, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Warn("Transaction not found", "transaction_id", id)
			return nil, errors.ErrTransactionNotFound
		}
		r.logger.Error("Failed to get transaction", "transaction_id", id, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get transaction").WithDetails(err.Error())
	}

	return t, nil
}

func (r *transactionRepository) FindAll() ([]*domain.Transaction, error) {
	rows, err := r.db.Query(selectTransaction + " ORDER BY t.id")
	if err != nil {
		r.logger.Error("Failed to list transactions", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to list transactions").WithDetails(err.Error())
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			r.logger.Error("Failed to scan transaction", "error", err)
			return nil, errors.NewAppError(errors.InternalError, "failed to list transactions").WithDetails(err.Error())
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to list transactions").WithDetails(err.Error())
	}

	return transactions, nil
}

// SaveDescription updates a description that already carries an id; a
// resubmission without an id is an insert. The reversal path relies on the
// update branch to flip the status column in place.
func (r *transactionRepository) SaveDescription(d *domain.Description) (*domain.Description, error) {
	if d.ID == 0 {
		query := `
			INSERT INTO descricao (amount, occurred_at, merchant, nsu, authorization_code, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`
		err := r.db.QueryRow(
			query,
			d.Amount,
			d.Timestamp,
			d.Merchant,
			nullString(d.Nsu),
			nullString(d.AuthorizationCode),
			nullString(string(d.Status)),
		).Scan(&d.ID)
		if err != nil {
			r.logger.Error("Failed to insert description", "error", err)
			return nil, errors.NewAppError(errors.InternalError, "failed to save description").WithDetails(err.Error())
		}
		return d, nil
	}

	query := `
		UPDATE descricao
		SET amount = $1, occurred_at = $2, merchant = $3, nsu = $4, authorization_code = $5, status = $6
		WHERE id = $7
	`

	result, err := r.db.Exec(
		query,
		d.Amount,
		d.Timestamp,
		d.Merchant,
		nullString(d.Nsu),
		nullString(d.AuthorizationCode),
		nullString(string(d.Status)),
		d.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update description", "description_id", d.ID, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to save description").WithDetails(err.Error())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to get rows affected").WithDetails(err.Error())
	}
	if rowsAffected == 0 {
		r.logger.Warn("No description found to update", "description_id", d.ID)
		return nil, errors.ErrTransactionNotFound
	}

	r.logger.Info("Description updated", "description_id", d.ID, "status", d.Status)
	return d, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t                 domain.Transaction
		description       domain.Description
		paymentMethod     domain.PaymentMethod
		nsu               sql.NullString
		authorizationCode sql.NullString
		status            sql.NullString
		paymentType       string
	)

	err := row.Scan(
		&t.ID,
		&t.Card,
		&description.ID,
		&description.Amount,
		&description.Timestamp,
		&description.Merchant,
		&nsu,
		&authorizationCode,
		&status,
		&paymentMethod.ID,
		&paymentType,
		&paymentMethod.InstallmentCount,
	)
	if err != nil {
		return nil, err
	}

	description.Nsu = nsu.String
	description.AuthorizationCode = authorizationCode.String
	description.Status = domain.Status(status.String)
	paymentMethod.Type = domain.PaymentType(paymentType)

	t.Description = &description
	t.PaymentMethod = &paymentMethod
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
