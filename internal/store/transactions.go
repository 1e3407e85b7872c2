package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/database"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
)

const transactionColumns = `id, listing_id, book_title, buyer_id, buyer_name, seller_id, seller_name,
	price, status, delivery_location, pickup_location, created_at, updated_at`

func scanTransaction(row rowScanner, t *models.Transaction) error {
	return row.Scan(
		&t.ID,
		&t.ListingID,
		&t.BookTitle,
		&t.BuyerID,
		&t.BuyerName,
		&t.SellerID,
		&t.SellerName,
		&t.Price,
		&t.Status,
		&t.DeliveryLocation,
		&t.PickupLocation,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
}

func (r pgRepos) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	if r.lock {
		query += ` FOR UPDATE`
	}

	txn := &models.Transaction{}
	err := scanTransaction(r.q.QueryRowContext(ctx, query, id), txn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	return txn, nil
}

func (r pgRepos) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.ListingID, t.BookTitle, t.BuyerID, t.BuyerName, t.SellerID, t.SellerName,
		t.Price, t.Status, t.DeliveryLocation, t.PickupLocation, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r pgRepos) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE transactions
		 SET status = $2, pickup_location = $3, updated_at = $4
		 WHERE id = $1`,
		t.ID, t.Status, t.PickupLocation, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return expectOneRow(result)
}

func (r pgRepos) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return txns, nil
}
