package sqlite

import (
	"context"
	"time"

	"github.com/hollowaylabs/gatehouse/internal/auth/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, phone_number, password_hash, two_factor_enabled, two_factor_secret, created_at, updated_at`

func (r *usersRepo) scanUser(row interface{ Scan(dest ...any) error }) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PhoneNumber,
		&u.PasswordHash,
		&u.TwoFactorEnabled,
		&u.TwoFactorSecret,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return r.scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
	return r.scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PhoneNumber, u.PasswordHash,
		u.TwoFactorEnabled, u.TwoFactorSecret, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID,
	)
	return err
}

func (r *usersRepo) SetTwoFactor(ctx context.Context, userID string, enabled bool, secret string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET two_factor_enabled = ?, two_factor_secret = ?, updated_at = ? WHERE id = ?`,
		enabled, secret, time.Now().UTC(), userID,
	)
	return err
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	return err
}

func (r *usersRepo) GetRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = ? ORDER BY role`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *usersRepo) AddRole(ctx context.Context, userID string, role string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES (?, ?)
		 ON CONFLICT (user_id, role) DO NOTHING`,
		userID, role,
	)
	return err
}

func (r *usersRepo) GetClaims(ctx context.Context, userID string) ([]domain.Claim, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT claim_type, claim_value FROM user_claims WHERE user_id = ? ORDER BY claim_type, claim_value`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []domain.Claim
	for rows.Next() {
		var c domain.Claim
		if err := rows.Scan(&c.Type, &c.Value); err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

func (r *usersRepo) AddClaim(ctx context.Context, userID string, claim domain.Claim) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_claims (user_id, claim_type, claim_value) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, claim_type, claim_value) DO NOTHING`,
		userID, claim.Type, claim.Value,
	)
	return err
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}
