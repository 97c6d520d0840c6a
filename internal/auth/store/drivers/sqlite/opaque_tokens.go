package sqlite

import (
	"context"
	"time"

	"github.com/hollowaylabs/gatehouse/internal/auth/domain"
)

type opaqueTokensRepo struct {
	db dbtx
}

const opaqueTokenColumns = `owner_id, issuer, purpose, fingerprint, expires_at, created_at`

func (r *opaqueTokensRepo) scanToken(row interface{ Scan(dest ...any) error }) (domain.OpaqueToken, error) {
	var t domain.OpaqueToken
	err := row.Scan(
		&t.OwnerID,
		&t.Issuer,
		&t.Purpose,
		&t.Fingerprint,
		&t.ExpiresAt,
		&t.CreatedAt,
	)
	if err != nil {
		return domain.OpaqueToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *opaqueTokensRepo) Save(ctx context.Context, t domain.OpaqueToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO opaque_tokens (`+opaqueTokenColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (owner_id, issuer, purpose) DO UPDATE SET
		   fingerprint = excluded.fingerprint,
		   expires_at  = excluded.expires_at,
		   created_at  = excluded.created_at`,
		t.OwnerID, t.Issuer, t.Purpose, t.Fingerprint, t.ExpiresAt, t.CreatedAt,
	)
	return err
}

func (r *opaqueTokensRepo) Get(ctx context.Context, ownerID, issuer, purpose string) (domain.OpaqueToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+opaqueTokenColumns+` FROM opaque_tokens
		 WHERE owner_id = ? AND issuer = ? AND purpose = ?`,
		ownerID, issuer, purpose)
	return r.scanToken(row)
}

func (r *opaqueTokensRepo) FindByValue(ctx context.Context, issuer, purpose, fingerprint string) (domain.OpaqueToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+opaqueTokenColumns+` FROM opaque_tokens
		 WHERE issuer = ? AND purpose = ? AND fingerprint = ?`,
		issuer, purpose, fingerprint)
	return r.scanToken(row)
}

// ConsumeByValue deletes the matching token and returns it in one statement,
// so concurrent redeemers race on the delete rather than a read-then-delete.
func (r *opaqueTokensRepo) ConsumeByValue(ctx context.Context, issuer, purpose, fingerprint string) (domain.OpaqueToken, error) {
	row := r.db.QueryRowContext(ctx,
		`DELETE FROM opaque_tokens
		 WHERE issuer = ? AND purpose = ? AND fingerprint = ?
		 RETURNING `+opaqueTokenColumns,
		issuer, purpose, fingerprint)
	return r.scanToken(row)
}

func (r *opaqueTokensRepo) Remove(ctx context.Context, ownerID, issuer, purpose string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM opaque_tokens WHERE owner_id = ? AND issuer = ? AND purpose = ?`,
		ownerID, issuer, purpose)
	return err
}

func (r *opaqueTokensRepo) RemoveForOwner(ctx context.Context, ownerID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM opaque_tokens WHERE owner_id = ?`, ownerID)
	return err
}

func (r *opaqueTokensRepo) DeleteExpired(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM opaque_tokens WHERE expires_at <= ?`, time.Now().UTC())
	return err
}
