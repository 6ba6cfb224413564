package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// AccountRow mirrors one row of the accounts table.
type AccountRow struct {
	ID        string
	Email     string
	FullName  string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountRepo provides account persistence.
type AccountRepo struct{}

const accountColumns = `id, email, full_name, role, created_at, updated_at`

func scanAccount(row interface{ Scan(dest ...any) error }) (AccountRow, error) {
	var (
		a        AccountRow
		id       pgtype.UUID
		fullName pgtype.Text
	)
	if err := row.Scan(&id, &a.Email, &fullName, &a.Role, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return AccountRow{}, err
	}
	a.ID = uuidString(id)
	a.FullName = textToString(fullName)
	return a, nil
}

// GetByID fetches one account.
func (AccountRepo) GetByID(ctx context.Context, db DB, accountID string) (AccountRow, error) {
	id, err := pgUUID(accountID)
	if err != nil {
		return AccountRow{}, err
	}
	row := db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// Ensure upserts the account the gateway asserted, keeping the local role
// authoritative once set.
func (AccountRepo) Ensure(ctx context.Context, db DB, accountID, email, role string) (AccountRow, error) {
	id, err := pgUUID(accountID)
	if err != nil {
		return AccountRow{}, err
	}
	row := db.QueryRow(ctx, `INSERT INTO accounts (id, email, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, updated_at = now()
		RETURNING `+accountColumns, id, email, role)
	return scanAccount(row)
}
