// Package auth implements the authentication service (C15):
// registration, credential login, access-token refresh, logout-by-
// blacklisting, and bearer-token validation, against the `users`,
// `tenants`, and `roles` tables and the shared token blacklist (C4).
package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/itechmeat/jeex/pkg/apperr"
	"github.com/itechmeat/jeex/pkg/blacklist"
	"github.com/itechmeat/jeex/pkg/config"
	"github.com/itechmeat/jeex/pkg/tenantctx"
)

// TokenType distinguishes an access token from a refresh token — both
// are signed with the same key and share a claims shape, so the type
// claim is what keeps one from being replayed as the other.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims is the fixed JWT claim set named in §6: sub, tenant_id, jti,
// exp, iat, and type, carried via embedded jwt.RegisteredClaims for
// sub/jti/exp/iat.
type Claims struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Type     TokenType `json:"type"`
	jwt.RegisteredClaims
}

// User is a users row, minus password_hash, safe to return from the API.
type User struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	TenantID    uuid.UUID    `db:"tenant_id" json:"tenant_id"`
	Email       string       `db:"email" json:"email"`
	Username    string       `db:"username" json:"username"`
	IsActive    bool         `db:"is_active" json:"is_active"`
	IsSuperuser bool         `db:"is_superuser" json:"is_superuser"`
	LastLoginAt sql.NullTime `db:"last_login_at" json:"-"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

type userRow struct {
	User
	PasswordHash sql.NullString `db:"password_hash"`
	DeletedAt    sql.NullTime   `db:"deleted_at"`
}

// TokenPair is what login and register return.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Service implements registration, login, refresh, logout, and token
// validation. secret is the HMAC signing key, resolved by the caller
// from the environment variable named in cfg.JWTSecretEnv (this package
// never reads the environment itself — the secret broker named in
// spec's Out of scope is the caller's concern).
type Service struct {
	db        *sqlx.DB
	blacklist *blacklist.List
	cfg       *config.AuthSettings
	secret    []byte
}

func New(db *sqlx.DB, bl *blacklist.List, cfg *config.AuthSettings, secret []byte) *Service {
	return &Service{db: db, blacklist: bl, cfg: cfg, secret: secret}
}

// RegisterInput bundles the fields needed to register a user. When
// TenantSlug names a tenant that doesn't yet exist, one is created and
// seeded with the fixed OWNER/EDITOR/VIEWER role set per §4.1 before the
// user is inserted — "create user + tenant if first" from §6's route
// table.
type RegisterInput struct {
	TenantSlug string
	TenantName string
	Email      string
	Username   string
	Password   string
}

// Register creates the tenant (if new) and the user within it, then
// immediately issues a token pair so the caller doesn't need a separate
// login round-trip right after signing up.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, *TokenPair, error) {
	if in.Email == "" || in.Username == "" || in.Password == "" || in.TenantSlug == "" {
		return nil, nil, apperr.Validation("", "tenant_slug, email, username, and password are all required")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: begin register: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tenantID, isNewTenant, err := getOrCreateTenant(ctx, tx, in.TenantSlug, in.TenantName)
	if err != nil {
		return nil, nil, err
	}
	if isNewTenant {
		if err := seedRoles(ctx, tx, tenantID); err != nil {
			return nil, nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost())
	if err != nil {
		return nil, nil, fmt.Errorf("auth: hash password: %w", err)
	}

	u := &User{ID: uuid.New(), TenantID: tenantID, Email: in.Email, Username: in.Username, IsActive: true}
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO users (id, tenant_id, email, username, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		u.ID, u.TenantID, u.Email, u.Username, string(hash),
	).Scan(&u.CreatedAt)
	if isUniqueViolation(err) {
		return nil, nil, apperr.Conflict("a user with this email or username already exists in this tenant")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("auth: insert user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("auth: commit register: %w", err)
	}

	pair, err := s.issueTokenPair(u.ID, u.TenantID)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

func getOrCreateTenant(ctx context.Context, tx *sqlx.Tx, slug, name string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := tx.GetContext(ctx, &id, `SELECT id FROM tenants WHERE slug = $1`, slug)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, fmt.Errorf("auth: lookup tenant: %w", err)
	}

	id = uuid.New()
	if name == "" {
		name = slug
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO tenants (id, slug, name) VALUES ($1, $2, $3)`, id, slug, name)
	if isUniqueViolation(err) {
		// Lost a race with a concurrent registration creating the same
		// slug; fall back to reading the row it created.
		if getErr := tx.GetContext(ctx, &id, `SELECT id FROM tenants WHERE slug = $1`, slug); getErr != nil {
			return uuid.Nil, false, fmt.Errorf("auth: re-read tenant after race: %w", getErr)
		}
		return id, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("auth: insert tenant: %w", err)
	}
	return id, true, nil
}

// seedRoles inserts the fixed OWNER/EDITOR/VIEWER roles with their
// permission sets (§4.1), scoped to the new tenant.
func seedRoles(ctx context.Context, tx *sqlx.Tx, tenantID uuid.UUID) error {
	for _, name := range []tenantctx.RoleName{tenantctx.RoleOwner, tenantctx.RoleEditor, tenantctx.RoleViewer} {
		perms, err := json.Marshal(tenantctx.PermissionsFor(name))
		if err != nil {
			return fmt.Errorf("auth: marshal permissions for %s: %w", name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO roles (id, tenant_id, name, permissions) VALUES ($1, $2, $3, $4)`,
			uuid.New(), tenantID, string(name), []byte(perms))
		if err != nil {
			return fmt.Errorf("auth: seed role %s: %w", name, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// LoginInput identifies a user by email or username within one tenant —
// credentials are never looked up across tenants.
type LoginInput struct {
	TenantSlug string
	Identifier string
	Password   string
}

// errInvalidCredentials is deliberately the same error for "no such
// tenant", "no such user", and "wrong password": distinguishing them in
// the response would let a caller enumerate valid tenants/usernames.
var errInvalidCredentials = apperr.New(apperr.KindUnauthorized, "invalid credentials")

// Login verifies the password and issues a new token pair.
func (s *Service) Login(ctx context.Context, in LoginInput) (*TokenPair, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		SELECT u.* FROM users u
		JOIN tenants t ON t.id = u.tenant_id
		WHERE t.slug = $1 AND (u.email = $2 OR u.username = $2) AND u.deleted_at IS NULL AND u.is_active = true`,
		in.TenantSlug, in.Identifier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth: login lookup: %w", err)
	}
	if !row.PasswordHash.Valid {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash.String), []byte(in.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = now() WHERE id = $1`, row.ID); err != nil {
		return nil, fmt.Errorf("auth: update last_login_at: %w", err)
	}

	return s.issueTokenPair(row.ID, row.TenantID)
}

// issueTokenPair signs a fresh access+refresh token for the user.
func (s *Service) issueTokenPair(userID, tenantID uuid.UUID) (*TokenPair, error) {
	now := time.Now().UTC()
	access, accessExp, err := s.signToken(userID, tenantID, TokenAccess, now, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.signToken(userID, tenantID, TokenRefresh, now, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: accessExp}, nil
}

func (s *Service) signToken(userID, tenantID uuid.UUID, typ TokenType, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := Claims{
		TenantID: tenantID,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// ValidateToken parses and verifies tokenString: signature, expiry,
// required claims (jti and tenant_id must be present per §6), and
// finally the blacklist. It does not check token type — callers that
// need a specific type (e.g. Refresh requiring a refresh token) check
// claims.Type themselves.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.Wrap(apperr.KindUnauthorized, "invalid or expired token", err)
	}
	if claims.ID == "" || claims.TenantID == uuid.Nil {
		return nil, apperr.New(apperr.KindUnauthorized, "token missing required claims")
	}

	revoked, err := s.blacklist.IsRevoked(ctx, claims.TenantID, claims.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, "blacklist check failed, failing closed", err)
	}
	if revoked {
		return nil, apperr.New(apperr.KindUnauthorized, "token has been revoked")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperr.New(apperr.KindUnauthorized, "token subject is not a valid user id")
	}
	userRevoked, err := s.blacklist.IsUserRevoked(ctx, claims.TenantID, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, "blacklist check failed, failing closed", err)
	}
	if userRevoked {
		return nil, apperr.New(apperr.KindUnauthorized, "user has been revoked")
	}

	return &claims, nil
}

// Refresh validates a refresh token and issues a new access token,
// leaving the refresh token itself unrotated — §6 names this endpoint
// "rotate access token", not "rotate refresh token".
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.ValidateToken(ctx, refreshToken)
	if err != nil {
		return "", time.Time{}, err
	}
	if claims.Type != TokenRefresh {
		return "", time.Time{}, apperr.New(apperr.KindUnauthorized, "token is not a refresh token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", time.Time{}, apperr.New(apperr.KindUnauthorized, "token subject is not a valid user id")
	}
	return s.signToken(userID, claims.TenantID, TokenAccess, time.Now().UTC(), s.cfg.AccessTokenTTL)
}

// Logout blacklists the JTI of the token just used to authenticate the
// logout request, for however long it would otherwise still be valid.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	return s.blacklist.Revoke(ctx, claims.TenantID, claims.ID, claims.ExpiresAt.Time)
}

// Me loads the profile of the currently authenticated user.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, tenant_id, email, username, is_active, is_superuser, last_login_at, created_at
		FROM users WHERE id = $1 AND deleted_at IS NULL`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("auth: me: %w", err)
	}
	return &u, nil
}

// BlacklistStats returns the number of currently-revoked tokens, for
// the superuser-only /auth/blacklist/stats endpoint.
func (s *Service) BlacklistStats(ctx context.Context) (int64, error) {
	return s.blacklist.Count(ctx)
}

func (s *Service) bcryptCost() int {
	if s.cfg.BcryptCost == 0 {
		return bcrypt.DefaultCost
	}
	return s.cfg.BcryptCost
}
