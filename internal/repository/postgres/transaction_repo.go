package postgres

import (
	"context"
	"fmt"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// TransactionRepository implements domain.TransactionRepository using PostgreSQL
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

const transactionColumns = `id, user_id, type, amount, wallet_id, category_id, destination_wallet_id, date, note, created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var txType string
	var amount pgtype.Numeric
	err := row.Scan(&t.ID, &t.UserID, &txType, &amount, &t.WalletID, &t.CategoryID,
		&t.DestinationWalletID, &t.Date, &t.Note, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Type = domain.TransactionType(txType)
	t.Amount = pgNumericToDecimal(amount)
	return &t, nil
}

// Create inserts a ledger entry
func (r *TransactionRepository) Create(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	amount, err := decimalToPgNumeric(transaction.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	return scanTransaction(r.pool.QueryRow(ctx, `
		INSERT INTO transactions (user_id, type, amount, wallet_id, category_id, destination_wallet_id, date, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+transactionColumns,
		transaction.UserID, string(transaction.Type), amount, transaction.WalletID,
		transaction.CategoryID, transaction.DestinationWalletID, transaction.Date, transaction.Note))
}

// GetByID retrieves a ledger entry owned by userID
func (r *TransactionRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, domain.ErrTransactionNotFound)
	}
	return t, nil
}

// Update rewrites every mutable column
func (r *TransactionRepository) Update(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	amount, err := decimalToPgNumeric(transaction.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	t, err := scanTransaction(r.pool.QueryRow(ctx, `
		UPDATE transactions
		SET type = $3, amount = $4, wallet_id = $5, category_id = $6,
		    destination_wallet_id = $7, date = $8, note = $9, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+transactionColumns,
		transaction.ID, transaction.UserID, string(transaction.Type), amount, transaction.WalletID,
		transaction.CategoryID, transaction.DestinationWalletID, transaction.Date, transaction.Note))
	if err != nil {
		return nil, notFound(err, domain.ErrTransactionNotFound)
	}
	return t, nil
}

// Delete removes a ledger entry
func (r *TransactionRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// DeleteAllByUser removes the user's whole ledger
func (r *TransactionRepository) DeleteAllByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID)
	return err
}

// ledgerWhere translates a LedgerFilter into SQL predicates
func ledgerWhere(f domain.LedgerFilter) (*whereBuilder, error) {
	w := &whereBuilder{}
	w.add("user_id = %s", f.UserID)
	if f.Type != nil {
		w.add("type = %s", string(*f.Type))
	}
	if f.WalletID != nil {
		w.add("wallet_id = %s", *f.WalletID)
	}
	if f.DestinationWalletID != nil {
		w.add("destination_wallet_id = %s", *f.DestinationWalletID)
	}
	if f.AnyWalletID != nil {
		w.add("(wallet_id = %s OR destination_wallet_id = %s)", *f.AnyWalletID, *f.AnyWalletID)
	}
	if f.CategoryID != nil {
		w.add("category_id = %s", *f.CategoryID)
	}
	if f.CategoryIDs != nil {
		w.add("category_id = ANY(%s::uuid[])", uuidStrings(f.CategoryIDs))
	}
	if f.Amount != nil {
		amount, err := decimalToPgNumeric(*f.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount filter: %w", err)
		}
		w.add("amount = %s", amount)
	}
	if f.Window != nil {
		w.add("date >= %s::timestamp AND date < %s::timestamp", f.Window.Start.UTC(), f.Window.End.UTC())
	}
	return w, nil
}

// Find returns matching rows ordered per filter.Order
func (r *TransactionRepository) Find(ctx context.Context, filter domain.LedgerFilter) ([]*domain.Transaction, error) {
	w, err := ledgerWhere(filter)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions` + w.String()
	switch filter.Order {
	case domain.OrderByAmountAsc:
		query += ` ORDER BY amount ASC, date DESC, id`
	case domain.OrderByAmountDesc:
		query += ` ORDER BY amount DESC, date DESC, id`
	default:
		query += ` ORDER BY date DESC, created_at DESC, id`
	}
	if filter.Limit > 0 {
		query += ` LIMIT ` + w.arg(filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// Sum totals the amounts of matching rows
func (r *TransactionRepository) Sum(ctx context.Context, filter domain.LedgerFilter) (decimal.Decimal, error) {
	w, err := ledgerWhere(filter)
	if err != nil {
		return decimal.Zero, err
	}

	var total pgtype.Numeric
	if err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM transactions`+w.String(), w.args...).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return pgNumericToDecimal(total), nil
}

// SummarizeWallets aggregates each wallet's movements. A transfer contributes to the source
// wallet's transfer_out and the destination wallet's transfer_in.
func (r *TransactionRepository) SummarizeWallets(ctx context.Context, userID uuid.UUID, walletIDs []uuid.UUID, window *domain.Window) ([]*domain.WalletMovementSummary, error) {
	var start, end any
	if window != nil {
		start, end = window.Start.UTC(), window.End.UTC()
	}

	rows, err := r.pool.Query(ctx, `
		WITH scoped AS (
			SELECT type, amount, wallet_id, destination_wallet_id
			FROM transactions
			WHERE user_id = $1
			  AND ($3::timestamp IS NULL OR date >= $3::timestamp)
			  AND ($4::timestamp IS NULL OR date < $4::timestamp)
		), movements AS (
			SELECT wallet_id,
			       CASE WHEN type = 'income' THEN amount ELSE 0 END AS income,
			       CASE WHEN type = 'expense' THEN amount ELSE 0 END AS expense,
			       CASE WHEN type = 'transfer' THEN amount ELSE 0 END AS transfer_out,
			       0::numeric AS transfer_in
			FROM scoped
			UNION ALL
			SELECT destination_wallet_id, 0, 0, 0, amount
			FROM scoped
			WHERE type = 'transfer' AND destination_wallet_id IS NOT NULL
		)
		SELECT wallet_id, SUM(income), SUM(expense), SUM(transfer_out), SUM(transfer_in)
		FROM movements
		WHERE $2::uuid[] IS NULL OR wallet_id = ANY($2::uuid[])
		GROUP BY wallet_id`,
		userID, uuidStrings(walletIDs), start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.WalletMovementSummary
	for rows.Next() {
		var s domain.WalletMovementSummary
		var income, expense, out, in pgtype.Numeric
		if err := rows.Scan(&s.WalletID, &income, &expense, &out, &in); err != nil {
			return nil, err
		}
		s.SumIncome = pgNumericToDecimal(income)
		s.SumExpense = pgNumericToDecimal(expense)
		s.SumTransferOut = pgNumericToDecimal(out)
		s.SumTransferIn = pgNumericToDecimal(in)
		result = append(result, &s)
	}
	return result, rows.Err()
}
