package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/swarm-relay/internal/apperror"
	"github.com/sakif/swarm-relay/internal/model"
	"github.com/sakif/swarm-relay/internal/repository"
)

// compile-time check that *DB implements repository.AccountRepository
var _ repository.AccountRepository = (*DB)(nil)

const accountColumns = `id, discord_user_id, discord_username, discord_display_name,
	foursquare_user_id, connected_at, created_at, updated_at, last_checkin_at`

// GetByDiscordID looks an account up by its primary (Discord) identity.
// Returns apperror.ErrNotFound on a miss.
func (db *DB) GetByDiscordID(ctx context.Context, discordUserID string) (*model.Account, error) {
	return db.getAccount(ctx, "discord_user_id", discordUserID)
}

// GetByFoursquareID looks an account up by its linked (Foursquare)
// identity. The column is UNIQUE, so at most one account can match.
// Returns apperror.ErrNotFound on a miss.
func (db *DB) GetByFoursquareID(ctx context.Context, foursquareUserID string) (*model.Account, error) {
	return db.getAccount(ctx, "foursquare_user_id", foursquareUserID)
}

func (db *DB) getAccount(ctx context.Context, column, value string) (*model.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM accounts WHERE %s = ?`, accountColumns, column),
		value,
	)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", value)
		}
		return nil, fmt.Errorf("sqlite: getting account by %s %q: %w", column, value, err)
	}
	return account, nil
}

// Create inserts a new account. The internal ID and both timestamps are
// stamped here — callers only supply the identity fields.
func (db *DB) Create(ctx context.Context, account *model.Account) error {
	now := time.Now().UTC()
	account.ID = xid.New().String()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO accounts
			(id, discord_user_id, discord_username, discord_display_name,
			 foursquare_user_id, connected_at, created_at, updated_at, last_checkin_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.DiscordUserID,
		account.DiscordUsername,
		account.DiscordDisplayName,
		nullString(account.FoursquareUserID),
		nullTime(account.ConnectedAt),
		account.CreatedAt,
		account.UpdatedAt,
		nullTime(account.LastCheckinAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting account (discordUserID=%s): %w",
			account.DiscordUserID, err)
	}
	return nil
}

// Update applies a partial update to the account with the given Discord ID
// and returns the refreshed record. Nil fields in updates are untouched.
// Fails with apperror.ErrNotFound when no record matches — callers must
// not rely on a silent no-op.
func (db *DB) Update(ctx context.Context, discordUserID string, updates model.AccountUpdate) (*model.Account, error) {
	account, err := db.GetByDiscordID(ctx, discordUserID)
	if err != nil {
		return nil, err
	}

	if updates.DiscordUsername != nil {
		account.DiscordUsername = *updates.DiscordUsername
	}
	if updates.DiscordDisplayName != nil {
		account.DiscordDisplayName = *updates.DiscordDisplayName
	}
	if updates.FoursquareUserID != nil {
		account.FoursquareUserID = *updates.FoursquareUserID
	}
	if updates.ConnectedAt != nil {
		t := updates.ConnectedAt.UTC()
		account.ConnectedAt = &t
	}
	account.UpdatedAt = time.Now().UTC()

	_, err = db.conn.ExecContext(ctx,
		`UPDATE accounts
		 SET discord_username = ?, discord_display_name = ?,
		     foursquare_user_id = ?, connected_at = ?, updated_at = ?
		 WHERE discord_user_id = ?`,
		account.DiscordUsername,
		account.DiscordDisplayName,
		nullString(account.FoursquareUserID),
		nullTime(account.ConnectedAt),
		account.UpdatedAt,
		discordUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating account %s: %w", discordUserID, err)
	}
	return account, nil
}

// DisconnectSwarm clears the Foursquare linkage from an account: the
// Foursquare ID, linkage timestamp, and last check-in time are removed;
// the Discord identity, display name, and CreatedAt survive; UpdatedAt is
// bumped. Fails with apperror.ErrNotFound on a miss.
func (db *DB) DisconnectSwarm(ctx context.Context, discordUserID string) (*model.Account, error) {
	account, err := db.GetByDiscordID(ctx, discordUserID)
	if err != nil {
		return nil, err
	}

	account.FoursquareUserID = ""
	account.ConnectedAt = nil
	account.LastCheckinAt = nil
	account.UpdatedAt = time.Now().UTC()

	_, err = db.conn.ExecContext(ctx,
		`UPDATE accounts
		 SET foursquare_user_id = NULL, connected_at = NULL,
		     last_checkin_at = NULL, updated_at = ?
		 WHERE discord_user_id = ?`,
		account.UpdatedAt,
		discordUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: disconnecting swarm for account %s: %w", discordUserID, err)
	}
	return account, nil
}

// TouchLastCheckin stamps the account's last check-in time to now.
// Called best-effort from the webhook pipeline; failure never blocks a
// notification.
func (db *DB) TouchLastCheckin(ctx context.Context, discordUserID string) error {
	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE accounts SET last_checkin_at = ?, updated_at = ?
		 WHERE discord_user_id = ?`,
		now, now, discordUserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: touching last checkin for account %s: %w", discordUserID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: touching last checkin for account %s: %w", discordUserID, err)
	}
	if affected == 0 {
		return apperror.NotFound("account", discordUserID)
	}
	return nil
}

// scanner abstracts *sql.Row / *sql.Rows for scanAccount.
type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*model.Account, error) {
	var (
		a             model.Account
		foursquareID  sql.NullString
		connectedAt   sql.NullTime
		lastCheckinAt sql.NullTime
	)
	err := row.Scan(
		&a.ID,
		&a.DiscordUserID,
		&a.DiscordUsername,
		&a.DiscordDisplayName,
		&foursquareID,
		&connectedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
		&lastCheckinAt,
	)
	if err != nil {
		return nil, err
	}
	if foursquareID.Valid {
		a.FoursquareUserID = foursquareID.String
	}
	if connectedAt.Valid {
		t := connectedAt.Time
		a.ConnectedAt = &t
	}
	if lastCheckinAt.Valid {
		t := lastCheckinAt.Time
		a.LastCheckinAt = &t
	}
	return &a, nil
}

// nullString maps "" to NULL so the UNIQUE index on foursquare_user_id
// never sees two empty strings as a collision.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
