package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hollowaylabs/gatehouse/internal/auth/domain"
	"github.com/hollowaylabs/gatehouse/internal/auth/store"
	"github.com/hollowaylabs/gatehouse/pkg/cryptox"
	"github.com/hollowaylabs/gatehouse/pkg/idx"
)

// UserDirectory is the account surface the login flow depends on. It is an
// interface so login decisions can be tested against a scripted directory.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	FindByID(ctx context.Context, id string) (domain.User, error)

	// CheckPassword reports whether the password matches the user's hash.
	// A mismatch is a false, not an error.
	CheckPassword(ctx context.Context, user domain.User, password string) (bool, error)

	GetRoles(ctx context.Context, userID string) ([]string, error)
	GetClaims(ctx context.Context, userID string) ([]domain.Claim, error)
	AddClaim(ctx context.Context, userID string, claim domain.Claim) error

	GenerateTwoFactorCode(ctx context.Context, userID string) (string, error)
	VerifyTwoFactorCode(ctx context.Context, userID, code string) (bool, error)
}

// DirectoryService is the store-backed UserDirectory.
type DirectoryService struct {
	Store     store.Store
	TwoFactor *TwoFactorService
}

// RegisterParams describes a new account. Roles are optional.
type RegisterParams struct {
	Email            string
	PhoneNumber      string
	Password         string
	TwoFactorEnabled bool
	Roles            []string
}

func (s *DirectoryService) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.Store.Users().GetUserByEmail(ctx, email)
}

func (s *DirectoryService) FindByID(ctx context.Context, id string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, id)
}

func (s *DirectoryService) CheckPassword(ctx context.Context, user domain.User, password string) (bool, error) {
	if user.PasswordHash == "" {
		return false, nil
	}
	return cryptox.VerifyPassword(password, user.PasswordHash) == nil, nil
}

func (s *DirectoryService) GetRoles(ctx context.Context, userID string) ([]string, error) {
	return s.Store.Users().GetRoles(ctx, userID)
}

func (s *DirectoryService) GetClaims(ctx context.Context, userID string) ([]domain.Claim, error) {
	return s.Store.Users().GetClaims(ctx, userID)
}

func (s *DirectoryService) AddClaim(ctx context.Context, userID string, claim domain.Claim) error {
	return s.Store.Users().AddClaim(ctx, userID, claim)
}

func (s *DirectoryService) GenerateTwoFactorCode(ctx context.Context, userID string) (string, error) {
	return s.TwoFactor.GenerateCode(ctx, userID)
}

func (s *DirectoryService) VerifyTwoFactorCode(ctx context.Context, userID, code string) (bool, error) {
	return s.TwoFactor.VerifyCode(ctx, userID, code)
}

// Register creates a new account with a hashed password and the given roles.
// Registration is transactional so a half-created account never surfaces.
func (s *DirectoryService) Register(ctx context.Context, p RegisterParams) (domain.User, error) {
	if p.Email == "" {
		return domain.User{}, errors.New("email is required")
	}

	hash, err := cryptox.HashPassword(p.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:               idx.New().String(),
		Email:            p.Email,
		PhoneNumber:      p.PhoneNumber,
		PasswordHash:     hash,
		TwoFactorEnabled: p.TwoFactorEnabled,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			return err
		}
		for _, role := range p.Roles {
			if err := tx.Users().AddRole(ctx, u.ID, role); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}

	return u, nil
}
