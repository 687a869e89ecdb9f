package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leafpress/go-bookstore/internal/database"
	"github.com/leafpress/go-bookstore/internal/models"
)

func CreateUser(ctx context.Context, db *sql.DB, email, name, passwordHash string, role models.Role) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (email, name, password_hash, role, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), 1)
		RETURNING id, email, name, password_hash, role, created_at, updated_at, version`

	err := db.QueryRowContext(ctx, query, email, name, passwordHash, role).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, db *sql.DB, id int64) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, name, password_hash, role, created_at, updated_at, version
		FROM users
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, name, password_hash, role, created_at, updated_at, version
		FROM users
		WHERE email = $1`

	err := db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return user, nil
}

func UpdatePassword(ctx context.Context, db *sql.DB, userID int64, passwordHash string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users
		 SET password_hash = $1, updated_at = NOW(), version = version + 1
		 WHERE id = $2`,
		passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrUserNotFound
	}

	return nil
}

func AddAddress(ctx context.Context, db *sql.DB, userID int64, label, text string) (*models.Address, error) {
	addr := &models.Address{}

	err := db.QueryRowContext(ctx,
		`INSERT INTO addresses (user_id, label, text)
		 VALUES ($1, $2, $3)
		 RETURNING id, user_id, label, text`,
		userID, label, text).Scan(&addr.ID, &addr.UserID, &addr.Label, &addr.Text)
	if err != nil {
		return nil, fmt.Errorf("add address: %w", err)
	}

	return addr, nil
}

func DeleteAddress(ctx context.Context, db *sql.DB, userID, addressID int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM addresses WHERE id = $1 AND user_id = $2`,
		addressID, userID)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrUserNotFound
	}

	return nil
}

func GetAddresses(ctx context.Context, db *sql.DB, userID int64) ([]models.Address, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, label, text FROM addresses WHERE user_id = $1 ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("get addresses: %w", err)
	}
	defer rows.Close()

	var addrs []models.Address
	for rows.Next() {
		var addr models.Address
		if err := rows.Scan(&addr.ID, &addr.UserID, &addr.Label, &addr.Text); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addrs = append(addrs, addr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return addrs, nil
}
