package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/database"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
)

func (r pgRepos) InsertUser(ctx context.Context, u *models.User, cred models.Credential) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (id, email, name, is_admin, location, phone, password_hash, salt, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Email, u.Name, u.IsAdmin, u.Location, u.Phone, cred.PasswordHash, cred.Salt, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r pgRepos) GetUser(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}

	err := r.q.QueryRowContext(ctx,
		`SELECT id, email, name, is_admin, location, phone, created_at, updated_at
		 FROM users
		 WHERE id = $1`, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.IsAdmin,
		&user.Location,
		&user.Phone,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func (r pgRepos) GetUserByEmail(ctx context.Context, email string) (*models.User, *models.Credential, error) {
	user := &models.User{}
	cred := &models.Credential{}

	err := r.q.QueryRowContext(ctx,
		`SELECT id, email, name, is_admin, location, phone, created_at, updated_at, password_hash, salt
		 FROM users
		 WHERE LOWER(email) = LOWER($1)`, email).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.IsAdmin,
		&user.Location,
		&user.Phone,
		&user.CreatedAt,
		&user.UpdatedAt,
		&cred.PasswordHash,
		&cred.Salt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("get user by email: %w", err)
	}

	cred.UserID = user.ID
	return user, cred, nil
}

func (r pgRepos) UpdateUser(ctx context.Context, u *models.User) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE users
		 SET email = $2, name = $3, is_admin = $4, location = $5, phone = $6, updated_at = $7
		 WHERE id = $1`,
		u.ID, u.Email, u.Name, u.IsAdmin, u.Location, u.Phone, u.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}
	return expectOneRow(result)
}

func (r pgRepos) ListContent(ctx context.Context) ([]models.ContentEntry, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT key, value, updated_at FROM site_content ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	var entries []models.ContentEntry
	for rows.Next() {
		var e models.ContentEntry
		if err := rows.Scan(&e.Key, &e.Value, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}

func (r pgRepos) PutContent(ctx context.Context, e models.ContentEntry) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO site_content (key, value, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		e.Key, e.Value, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put content: %w", err)
	}
	return nil
}
