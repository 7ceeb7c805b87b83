// Package repository defines the storage interfaces the service layer
// depends on. Concrete implementations live in subpackages (sqlite).
package repository

import (
	"context"

	"github.com/sakif/swarm-relay/internal/model"
)

// AccountRepository is the user directory: account records keyed by
// external identities.
//
// CONTRACT NOTES:
//   - GetByDiscordID / GetByFoursquareID return apperror.ErrNotFound on a
//     miss — callers distinguish "no such account" from storage failures.
//   - Update, DisconnectSwarm, and TouchLastCheckin also fail with
//     ErrNotFound when no record matches; they are NOT idempotent no-ops
//     on missing accounts.
//   - Create and every mutation stamp timestamps server-side. CreatedAt is
//     immutable; UpdatedAt refreshes on every write.
//   - DisconnectSwarm is a deliberate reset-to-primary-only: it clears the
//     Foursquare identity and linkage time, preserves the Discord identity,
//     display name, and CreatedAt, and bumps UpdatedAt.
type AccountRepository interface {
	GetByDiscordID(ctx context.Context, discordUserID string) (*model.Account, error)
	GetByFoursquareID(ctx context.Context, foursquareUserID string) (*model.Account, error)
	Create(ctx context.Context, account *model.Account) error
	Update(ctx context.Context, discordUserID string, updates model.AccountUpdate) (*model.Account, error)
	DisconnectSwarm(ctx context.Context, discordUserID string) (*model.Account, error)
	TouchLastCheckin(ctx context.Context, discordUserID string) error
}
