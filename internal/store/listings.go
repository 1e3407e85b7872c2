package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/database"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
)

const listingColumns = `id, title, author, category, book_condition, price, description, image,
	seller_id, seller_name, status, created_at, updated_at`

func scanListing(row rowScanner, l *models.Listing) error {
	return row.Scan(
		&l.ID,
		&l.Title,
		&l.Author,
		&l.Category,
		&l.Condition,
		&l.Price,
		&l.Description,
		&l.Image,
		&l.SellerID,
		&l.SellerName,
		&l.Status,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
}

func (r pgRepos) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	if r.lock {
		query += ` FOR UPDATE`
	}

	listing := &models.Listing{}
	err := scanListing(r.q.QueryRowContext(ctx, query, id), listing)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}

	return listing, nil
}

func (r pgRepos) InsertListing(ctx context.Context, l *models.Listing) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO listings (`+listingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		l.ID, l.Title, l.Author, l.Category, l.Condition, l.Price, l.Description, l.Image,
		l.SellerID, l.SellerName, l.Status, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (r pgRepos) UpdateListing(ctx context.Context, l *models.Listing) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE listings
		 SET title = $2, author = $3, category = $4, book_condition = $5, price = $6,
		     description = $7, image = $8, status = $9, updated_at = $10
		 WHERE id = $1`,
		l.ID, l.Title, l.Author, l.Category, l.Condition, l.Price,
		l.Description, l.Image, l.Status, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	return expectOneRow(result)
}

func (r pgRepos) DeleteListing(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return expectOneRow(result)
}

func (r pgRepos) ListListings(ctx context.Context) ([]models.Listing, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+listingColumns+` FROM listings ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := scanListing(rows, &l); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return listings, nil
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
