package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantumspace/chatcore/internal/core"
	"github.com/quantumspace/chatcore/internal/store"
)

// ErrInactiveAccount is returned when a valid token names a missing or disabled account.
var ErrInactiveAccount = errors.New("inactive account")

// Gate resolves connection tokens to identities of active accounts.
type Gate struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewGate creates a gate backed by the given user store.
func NewGate(userStore store.UserStore, jwtConfig *JWTConfig) *Gate {
	return &Gate{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Authenticate validates token and confirms the account still exists and is active.
func (g *Gate) Authenticate(ctx context.Context, token string) (core.Identity, error) {
	claims, err := ValidateToken(g.jwtConfig, token)
	if err != nil {
		return core.Identity{}, err
	}

	user, err := g.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return core.Identity{}, fmt.Errorf("%w: user %d", ErrInactiveAccount, claims.UserID)
		}
		return core.Identity{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return core.Identity{}, fmt.Errorf("%w: user %d", ErrInactiveAccount, user.ID)
	}

	return core.Identity{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
	}, nil
}
