package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/gildgarde/backend-boutique/internal/common"
	"github.com/gildgarde/backend-boutique/internal/user"
)

const (
	defaultAccessTTL = 15 * time.Minute
	defaultVerifyTTL = 48 * time.Hour
)

// UserStore defines the account persistence operations the service relies on.
type UserStore interface {
	Create(ctx context.Context, p user.CreateParams) (user.User, error)
	ByID(ctx context.Context, id string) (user.User, error)
	ByEmail(ctx context.Context, email string) (user.User, error)
	VerifyByToken(ctx context.Context, tokenHash string, now time.Time) (user.User, error)
}

// VerificationMailer schedules delivery of the verification email.
type VerificationMailer interface {
	EnqueueVerificationEmail(ctx context.Context, to, name, link string) error
}

// Service coordinates registration, email verification, and token issuance.
type Service struct {
	users         UserStore
	mailer        VerificationMailer
	secret        []byte
	accessTTL     time.Duration
	verifyTTL     time.Duration
	issuer        string
	publicBaseURL string
	now           func() time.Time
	validate      *validator.Validate
}

// Config configures the auth service.
type Config struct {
	Users          UserStore
	Mailer         VerificationMailer
	Secret         string
	AccessTokenTTL time.Duration
	VerifyTokenTTL time.Duration
	Issuer         string
	PublicBaseURL  string
}

// LoginResult bundles token material returned after a successful login.
type LoginResult struct {
	User         user.User `json:"user"`
	AccessToken  string    `json:"access_token"`
	AccessExpiry time.Time `json:"access_expires_at"`
}

type registerInput struct {
	Name     string `validate:"required,min=2,max=120"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=128"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Users == nil {
		return nil, errors.New("auth: user store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	verifyTTL := cfg.VerifyTokenTTL
	if verifyTTL <= 0 {
		verifyTTL = defaultVerifyTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "backend-boutique"
	}
	return &Service{
		users:         cfg.Users,
		mailer:        cfg.Mailer,
		secret:        []byte(secret),
		accessTTL:     accessTTL,
		verifyTTL:     verifyTTL,
		issuer:        issuer,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		now:           time.Now,
		validate:      validator.New(),
	}, nil
}

// Register creates an unverified account and schedules the verification email.
func (s *Service) Register(ctx context.Context, name, email, password string) (user.User, error) {
	input := registerInput{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email), Password: password}
	if err := s.validate.Struct(input); err != nil {
		return user.User{}, common.NewAppError("VALIDATION_ERROR", "invalid registration payload", http.StatusBadRequest, err)
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	token, err := randomToken()
	if err != nil {
		return user.User{}, fmt.Errorf("generate verification token: %w", err)
	}

	created, err := s.users.Create(ctx, user.CreateParams{
		Name:            input.Name,
		Email:           input.Email,
		PasswordHash:    hash,
		VerifyTokenHash: common.Sha256Hex(token),
		VerifyExpiresAt: s.now().Add(s.verifyTTL),
	})
	if err != nil {
		return user.User{}, err
	}

	if s.mailer != nil {
		link := s.publicBaseURL + "/api/v1/auth/verify?token=" + token
		if err := s.mailer.EnqueueVerificationEmail(ctx, created.Email, created.Name, link); err != nil {
			// account exists either way; the token can be re-requested
			return created, common.NewAppError("VERIFICATION_EMAIL_FAILED", "could not schedule verification email", http.StatusInternalServerError, err)
		}
	}
	return created, nil
}

// Verify completes email verification for the single-use token.
func (s *Service) Verify(ctx context.Context, token string) (user.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return user.User{}, common.NewAppError("INVALID_TOKEN", "verification token is required", http.StatusBadRequest, nil)
	}
	verified, err := s.users.VerifyByToken(ctx, common.Sha256Hex(token), s.now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, common.NewAppError("INVALID_TOKEN", "verification token is invalid or expired", http.StatusBadRequest, err)
		}
		return user.User{}, err
	}
	return verified, nil
}

// Login checks credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	account, err := s.users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginResult{}, invalidCredentials(err)
		}
		return LoginResult{}, err
	}
	match, err := argon2id.ComparePasswordAndHash(password, account.PasswordHash)
	if err != nil {
		return LoginResult{}, fmt.Errorf("compare password: %w", err)
	}
	if !match {
		return LoginResult{}, invalidCredentials(nil)
	}
	if !account.Verified() {
		return LoginResult{}, common.NewAppError("EMAIL_NOT_VERIFIED", "verify your email before logging in", http.StatusForbidden, nil)
	}

	token, expiry, err := s.issueAccessToken(account)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: account, AccessToken: token, AccessExpiry: expiry}, nil
}

// Me returns the account for an authenticated user id.
func (s *Service) Me(ctx context.Context, id string) (user.User, error) {
	account, err := s.users.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, common.NewAppError("NOT_FOUND", "account not found", http.StatusNotFound, err)
		}
		return user.User{}, err
	}
	return account, nil
}

// ParseToken validates a bearer token and returns the subject and email claims.
func (s *Service) ParseToken(tokenString string) (id, email string, err error) {
	tok, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithIssuer(s.issuer),
		jwt.WithValidate(true),
	)
	if err != nil {
		return "", "", common.NewAppError("UNAUTHORIZED", "missing or invalid token", http.StatusUnauthorized, err)
	}
	if v, ok := tok.Get("email"); ok {
		email, _ = v.(string)
	}
	return tok.Subject(), email, nil
}

func (s *Service) issueAccessToken(account user.User) (string, time.Time, error) {
	now := s.now()
	expiry := now.Add(s.accessTTL)
	tok, err := jwt.NewBuilder().
		Issuer(s.issuer).
		Subject(account.ID).
		IssuedAt(now).
		Expiration(expiry).
		Claim("email", account.Email).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return string(signed), expiry, nil
}

func invalidCredentials(err error) *common.AppError {
	return common.NewAppError("INVALID_CREDENTIALS", "email or password is incorrect", http.StatusUnauthorized, err)
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
