package store

import (
	"context"
	"errors"

	"github.com/hollowaylabs/gatehouse/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and transaction scoping explicit so multi-step operations such as
// token rotation cannot accidentally nest transactions.
type Store interface {
	Users() Users
	OpaqueTokens() OpaqueTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. This is the
	// recommended way to handle transactions.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during password login; the lookup is
	// case-insensitive on the email address.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// SetTwoFactor enables or disables the second factor and stores the
	// TOTP secret backing one-time codes.
	SetTwoFactor(ctx context.Context, userID string, enabled bool, secret string) error

	// DeleteUser cascades to roles, claims and opaque tokens (per schema).
	DeleteUser(ctx context.Context, userID string) error

	// GetRoles returns the role names assigned to a user.
	GetRoles(ctx context.Context, userID string) ([]string, error)

	// AddRole assigns a role to a user; adding an already-held role is a no-op.
	AddRole(ctx context.Context, userID string, role string) error

	// GetClaims returns the stored claims for a user.
	GetClaims(ctx context.Context, userID string) ([]domain.Claim, error)

	// AddClaim appends a claim to a user. Duplicate (type, value) pairs are
	// ignored so claim injection at login is idempotent.
	AddClaim(ctx context.Context, userID string, claim domain.Claim) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type OpaqueTokens interface {
	// Save upserts a token under its (owner_id, issuer, purpose) key. An
	// existing token under the same key is superseded, which is how
	// rotation works.
	Save(ctx context.Context, t domain.OpaqueToken) error

	// Get returns the live token for a key, expired or not. Expiry is the
	// caller's concern.
	Get(ctx context.Context, ownerID, issuer, purpose string) (domain.OpaqueToken, error)

	// FindByValue looks a token up by the fingerprint of its raw value.
	FindByValue(ctx context.Context, issuer, purpose, fingerprint string) (domain.OpaqueToken, error)

	// ConsumeByValue atomically deletes the token matching the fingerprint
	// and returns it. ErrNotFound means someone else consumed it first, so
	// single-use semantics hold under concurrent redemption.
	ConsumeByValue(ctx context.Context, issuer, purpose, fingerprint string) (domain.OpaqueToken, error)

	// Remove deletes the token under a key. Removing a missing token is not
	// an error.
	Remove(ctx context.Context, ownerID, issuer, purpose string) error

	// RemoveForOwner deletes every token an owner holds, any issuer or
	// purpose. Used by logout.
	RemoveForOwner(ctx context.Context, ownerID string) error

	// DeleteExpired removes all tokens past their expiry (housekeeping).
	DeleteExpired(ctx context.Context) error
}
