package user

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gildgarde/backend-boutique/internal/common"
)

// User represents a registered account.
type User struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`

	PasswordHash string `json:"-"`
}

// Verified reports whether the account completed email verification.
func (u User) Verified() bool { return u.VerifiedAt != nil }

// Store persists and looks up accounts.
type Store struct {
	Pool *pgxpool.Pool
}

// CreateParams captures the inputs for account creation.
type CreateParams struct {
	Name            string
	Email           string
	PasswordHash    string
	VerifyTokenHash string
	VerifyExpiresAt time.Time
}

const userColumns = `id, name, email, password_hash, email_verified_at, created_at`

// Create inserts a new unverified account.
func (s *Store) Create(ctx context.Context, p CreateParams) (User, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, verify_token_hash, verify_token_expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		strings.TrimSpace(p.Name), normalizeEmail(p.Email), p.PasswordHash, p.VerifyTokenHash, p.VerifyExpiresAt)
	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", http.StatusConflict, err)
		}
		return User{}, err
	}
	return u, nil
}

// ByID returns the account with the given identifier. pgx.ErrNoRows when absent.
func (s *Store) ByID(ctx context.Context, id string) (User, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return User{}, pgx.ErrNoRows
	}
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, uid)
	return scanUser(row)
}

// ByEmail returns the account registered under the given email. pgx.ErrNoRows when absent.
func (s *Store) ByEmail(ctx context.Context, email string) (User, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, normalizeEmail(email))
	return scanUser(row)
}

// VerifyByToken marks the account matching the hashed verification token as
// verified and clears the token. pgx.ErrNoRows when the token is unknown or expired.
func (s *Store) VerifyByToken(ctx context.Context, tokenHash string, now time.Time) (User, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE users
		SET email_verified_at = $2, verify_token_hash = NULL, verify_token_expires_at = NULL, updated_at = $2
		WHERE verify_token_hash = $1 AND verify_token_expires_at > $2 AND email_verified_at IS NULL
		RETURNING `+userColumns,
		tokenHash, now)
	return scanUser(row)
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id         pgtype.UUID
		verifiedAt pgtype.Timestamptz
		createdAt  pgtype.Timestamptz
		u          User
	)
	if err := row.Scan(&id, &u.Name, &u.Email, &u.PasswordHash, &verifiedAt, &createdAt); err != nil {
		return User{}, err
	}
	u.ID = uuid.UUID(id.Bytes).String()
	if verifiedAt.Valid {
		t := verifiedAt.Time
		u.VerifiedAt = &t
	}
	u.CreatedAt = createdAt.Time
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
