package postgres

import (
	"context"
	"fmt"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WalletRepository implements domain.WalletRepository using PostgreSQL
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a new WalletRepository
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

const walletColumns = `id, user_id, name, icon, initial_balance, hidden, is_main_wallet, created_at, updated_at`

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	var initial pgtype.Numeric
	if err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.Icon, &initial, &w.Hidden, &w.IsMainWallet, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.InitialBalance = pgNumericToDecimal(initial)
	return &w, nil
}

// Create inserts a wallet. A new main wallet demotes the previous one in the same transaction.
func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) (*domain.Wallet, error) {
	initial, err := decimalToPgNumeric(wallet.InitialBalance)
	if err != nil {
		return nil, fmt.Errorf("invalid initial balance: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if wallet.IsMainWallet {
		if _, err := tx.Exec(ctx, `UPDATE wallets SET is_main_wallet = false WHERE user_id = $1 AND is_main_wallet`, wallet.UserID); err != nil {
			return nil, err
		}
	}

	created, err := scanWallet(tx.QueryRow(ctx, `
		INSERT INTO wallets (user_id, name, icon, initial_balance, hidden, is_main_wallet)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+walletColumns,
		wallet.UserID, wallet.Name, wallet.Icon, initial, wallet.Hidden, wallet.IsMainWallet))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a wallet owned by userID
func (r *WalletRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Wallet, error) {
	wallet, err := scanWallet(r.pool.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, domain.ErrWalletNotFound)
	}
	return wallet, nil
}

// GetAllByUser lists a user's wallets, main wallet first
func (r *WalletRepository) GetAllByUser(ctx context.Context, userID uuid.UUID, filter domain.WalletFilter) ([]*domain.Wallet, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+walletColumns+` FROM wallets
		WHERE user_id = $1 AND ($2 OR NOT hidden)
		ORDER BY is_main_wallet DESC, created_at, id`, userID, filter.IncludeHidden)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []*domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// Update writes every mutable field
func (r *WalletRepository) Update(ctx context.Context, wallet *domain.Wallet) (*domain.Wallet, error) {
	initial, err := decimalToPgNumeric(wallet.InitialBalance)
	if err != nil {
		return nil, fmt.Errorf("invalid initial balance: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if wallet.IsMainWallet {
		if _, err := tx.Exec(ctx, `UPDATE wallets SET is_main_wallet = false WHERE user_id = $1 AND id <> $2 AND is_main_wallet`, wallet.UserID, wallet.ID); err != nil {
			return nil, err
		}
	}

	updated, err := scanWallet(tx.QueryRow(ctx, `
		UPDATE wallets
		SET name = $3, icon = $4, initial_balance = $5, hidden = $6, is_main_wallet = $7, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+walletColumns,
		wallet.ID, wallet.UserID, wallet.Name, wallet.Icon, initial, wallet.Hidden, wallet.IsMainWallet))
	if err != nil {
		return nil, notFound(err, domain.ErrWalletNotFound)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a wallet
func (r *WalletRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM wallets WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}

// DeleteAllByUser removes every wallet of a user. Transactions must be deleted first.
func (r *WalletRepository) DeleteAllByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM wallets WHERE user_id = $1`, userID)
	return err
}
