package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	authgate "github.com/mwillfox/authgate"
	"github.com/mwillfox/authgate/password"
)

// UserStore reads and writes users in MySQL. Passwords enter as
// plaintext and leave the store only as argon2id hashes.
type UserStore struct {
	db     *sql.DB
	hasher *password.Argon2
}

func New(db *sql.DB, hasher *password.Argon2) (*UserStore, error) {
	if db == nil {
		return nil, errors.New("db handle required")
	}
	if hasher == nil {
		var err error
		hasher, err = password.NewArgon2(password.DefaultConfig())
		if err != nil {
			return nil, err
		}
	}

	return &UserStore{db: db, hasher: hasher}, nil
}

// Open connects to MySQL with the given DSN and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// GetUserByEmail implements authgate.UserProvider.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (authgate.UserRecord, error) {
	query := `
		SELECT user_id, email, password_hash
		FROM users
		WHERE email = ?
	`

	var user authgate.UserRecord
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.UserID,
		&user.Email,
		&user.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authgate.UserRecord{}, authgate.ErrUserNotFound
		}
		return authgate.UserRecord{}, fmt.Errorf("query user: %w", err)
	}

	return user, nil
}

// UpdatePassword implements authgate.UserProvider. The plaintext is
// hashed here; the engine never sees the stored format.
func (s *UserStore) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	query := `UPDATE users SET password_hash = ? WHERE user_id = ?`

	result, err := s.db.ExecContext(ctx, query, hash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if rows == 0 {
		return authgate.ErrUserNotFound
	}

	return nil
}

// CreateUser inserts a new user with a hashed password and returns the
// generated user ID.
func (s *UserStore) CreateUser(ctx context.Context, email, plainPassword string) (string, error) {
	hash, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	query := `INSERT INTO users (email, password_hash) VALUES (?, ?)`

	result, err := s.db.ExecContext(ctx, query, email, hash)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	return fmt.Sprintf("%d", id), nil
}
