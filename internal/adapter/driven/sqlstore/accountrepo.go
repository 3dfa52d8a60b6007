package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
	"github.com/ericfisherdev/inboxrelay/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccountStore = (*AccountRepo)(nil)

// AccountRepo is the SQL implementation of the AccountStore port interface.
type AccountRepo struct {
	db *DB
}

// NewAccountRepo creates a new AccountRepo backed by the given DB.
func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// Get returns the account with the given id. Returns nil, nil if it does not
// exist.
func (r *AccountRepo) Get(ctx context.Context, id string) (*model.Account, error) {
	query := r.db.q(`SELECT id, email, role, credits FROM accounts WHERE id = ?`)

	var (
		account model.Account
		role    string
		credits sql.NullInt64
	)
	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(&account.ID, &account.Email, &role, &credits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}

	account.Role = model.Role(role)
	if credits.Valid {
		c := credits.Int64
		account.Credits = &c
	}

	return &account, nil
}

// DecrementCredit subtracts one credit in a single guarded UPDATE so that
// concurrent callers can never drive the balance below zero or charge the same
// credit twice. It reports whether a credit was charged.
func (r *AccountRepo) DecrementCredit(ctx context.Context, id string) (bool, error) {
	query := r.db.q(`UPDATE accounts SET credits = credits - 1 WHERE id = ? AND credits > 0`)

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("decrement credit for account %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}

	return rows == 1, nil
}
