package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/deeds/internal/domain"
	"example.com/deeds/internal/observability"
)

// Repository provides Postgres-backed persistence for deeds, entries and
// preferences. Every call scopes its transaction to the tenant via
// set_config so row-level security policies apply.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const deedColumns = `deed_id, tenant_id, user_id, name, emoji, color, category, polarity, unit_type, unit_label, points_per_unit, daily_cap, private, show_on_stats, archived, sort_order, created_at`

const entryColumns = `entry_id, deed_id, logged_at, amount, points, note, created_at`

func (r *Repository) withTenantTx(ctx context.Context, tenantID string, fn func(tx pgx.Tx) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateDeed persists a new deed.
func (r *Repository) CreateDeed(ctx context.Context, deed domain.Deed) error {
	const stmt = `INSERT INTO deeds (` + deedColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`

	return r.withTenantTx(ctx, deed.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, stmt,
			deed.ID,
			deed.TenantID,
			deed.UserID,
			deed.Name,
			deed.Emoji,
			deed.Color,
			deed.Category,
			deed.Polarity,
			deed.UnitType,
			deed.UnitLabel,
			deed.PointsPerUnit,
			deed.DailyCap,
			deed.Private,
			deed.ShowOnStats,
			deed.Archived,
			deed.SortOrder,
			deed.CreatedAt,
		)
		return err
	})
}

// UpdateDeed rewrites a deed in place, reporting whether a row matched.
func (r *Repository) UpdateDeed(ctx context.Context, deed domain.Deed) (bool, error) {
	const stmt = `UPDATE deeds SET name=$4, emoji=$5, color=$6, category=$7, polarity=$8, unit_type=$9, unit_label=$10,
        points_per_unit=$11, daily_cap=$12, private=$13, show_on_stats=$14, archived=$15, sort_order=$16
        WHERE tenant_id=$1 AND user_id=$2 AND deed_id=$3`

	var matched bool
	err := r.withTenantTx(ctx, deed.TenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt,
			deed.TenantID,
			deed.UserID,
			deed.ID,
			deed.Name,
			deed.Emoji,
			deed.Color,
			deed.Category,
			deed.Polarity,
			deed.UnitType,
			deed.UnitLabel,
			deed.PointsPerUnit,
			deed.DailyCap,
			deed.Private,
			deed.ShowOnStats,
			deed.Archived,
			deed.SortOrder,
		)
		if err != nil {
			return err
		}
		matched = tag.RowsAffected() > 0
		return nil
	})
	return matched, err
}

// GetDeed retrieves a deed by ID, nil when absent.
func (r *Repository) GetDeed(ctx context.Context, tenantID, userID, deedID string) (*domain.Deed, error) {
	const query = `SELECT ` + deedColumns + ` FROM deeds WHERE tenant_id=$1 AND user_id=$2 AND deed_id=$3`

	var deed *domain.Deed
	err := r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, query, tenantID, userID, deedID)
		scanned, err := scanDeed(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		deed = scanned
		return nil
	})
	return deed, err
}

// ListDeeds returns the catalog ordered by sort order, then creation time.
func (r *Repository) ListDeeds(ctx context.Context, tenantID, userID string, includeArchived bool) ([]domain.Deed, error) {
	query := `SELECT ` + deedColumns + ` FROM deeds WHERE tenant_id=$1 AND user_id=$2`
	if !includeArchived {
		query += ` AND archived = FALSE`
	}
	query += ` ORDER BY sort_order ASC, created_at ASC, deed_id ASC`

	var deeds []domain.Deed
	err := r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			deed, err := scanDeed(rows)
			if err != nil {
				return err
			}
			deeds = append(deeds, *deed)
		}
		return rows.Err()
	})
	return deeds, err
}

// DeleteDeedEntries removes every entry referencing the deed. The caller
// performs the two-step cascade: entries first, then DeleteDeed.
func (r *Repository) DeleteDeedEntries(ctx context.Context, tenantID, userID, deedID string) error {
	const stmt = `DELETE FROM entries WHERE tenant_id=$1 AND user_id=$2 AND deed_id=$3`
	return r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, stmt, tenantID, userID, deedID)
		return err
	})
}

// DeleteDeed removes the deed row itself.
func (r *Repository) DeleteDeed(ctx context.Context, tenantID, userID, deedID string) (bool, error) {
	const stmt = `DELETE FROM deeds WHERE tenant_id=$1 AND user_id=$2 AND deed_id=$3`

	var matched bool
	err := r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt, tenantID, userID, deedID)
		if err != nil {
			return err
		}
		matched = tag.RowsAffected() > 0
		return nil
	})
	return matched, err
}

// InsertEntry persists one ledger entry.
func (r *Repository) InsertEntry(ctx context.Context, tenantID, userID string, entry domain.Entry) error {
	const stmt = `INSERT INTO entries (entry_id, tenant_id, user_id, deed_id, logged_at, amount, points, note, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	err := r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, stmt,
			entry.ID,
			tenantID,
			userID,
			entry.DeedID,
			entry.Timestamp,
			entry.Amount,
			entry.Points,
			nullIfEmpty(entry.Note),
			entry.CreatedAt,
		)
		return err
	})
	if err != nil {
		return err
	}
	observability.RecordEntryAppended(entry.Timestamp)
	return nil
}

// DeleteEntry removes a single entry, reporting whether a row matched.
// Sibling entries are never touched: their computed points stay as written.
func (r *Repository) DeleteEntry(ctx context.Context, tenantID, userID, entryID string) (bool, error) {
	const stmt = `DELETE FROM entries WHERE tenant_id=$1 AND user_id=$2 AND entry_id=$3`

	var matched bool
	err := r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt, tenantID, userID, entryID)
		if err != nil {
			return err
		}
		matched = tag.RowsAffected() > 0
		return nil
	})
	return matched, err
}

// QueryEntries returns matching entries ordered by timestamp ascending.
func (r *Repository) QueryEntries(ctx context.Context, tenantID, userID string, q domain.EntryQuery) ([]domain.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE tenant_id=$1 AND user_id=$2`
	args := []interface{}{tenantID, userID}

	if q.DeedID != "" {
		args = append(args, q.DeedID)
		query += fmt.Sprintf(` AND deed_id=$%d`, len(args))
	}
	if q.From != nil {
		args = append(args, *q.From)
		query += fmt.Sprintf(` AND logged_at >= $%d`, len(args))
	}
	if q.To != nil {
		args = append(args, *q.To)
		query += fmt.Sprintf(` AND logged_at < $%d`, len(args))
	}
	query += ` ORDER BY logged_at ASC, entry_id ASC`

	var entries []domain.Entry
	err := r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			entry, err := scanEntry(rows)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return rows.Err()
	})
	return entries, err
}

// ListEntriesPage returns one keyset page of entries ordered by timestamp.
func (r *Repository) ListEntriesPage(ctx context.Context, tenantID, userID string, q domain.EntryQuery, cursor *domain.Cursor, limit int) ([]domain.Entry, *domain.Cursor, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE tenant_id=$1 AND user_id=$2`
	args := []interface{}{tenantID, userID}

	if q.DeedID != "" {
		args = append(args, q.DeedID)
		query += fmt.Sprintf(` AND deed_id=$%d`, len(args))
	}
	if q.From != nil {
		args = append(args, *q.From)
		query += fmt.Sprintf(` AND logged_at >= $%d`, len(args))
	}
	if q.To != nil {
		args = append(args, *q.To)
		query += fmt.Sprintf(` AND logged_at < $%d`, len(args))
	}
	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.ID)
		query += fmt.Sprintf(` AND (logged_at, entry_id) > ($%d, $%d)`, len(args)-1, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY logged_at ASC, entry_id ASC LIMIT $%d`, len(args))

	entries := make([]domain.Entry, 0, limit)
	err := r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			entry, err := scanEntry(rows)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if limit > 0 && len(entries) == limit {
		last := entries[len(entries)-1]
		next = &domain.Cursor{Timestamp: last.Timestamp, ID: last.ID}
	}
	return entries, next, nil
}

// GetPreferences retrieves stored preferences, nil when unset.
func (r *Repository) GetPreferences(ctx context.Context, tenantID, userID string) (*domain.Preferences, error) {
	const query = `SELECT cutoff_hour, updated_at FROM preferences WHERE tenant_id=$1 AND user_id=$2`

	var prefs *domain.Preferences
	err := r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		var p domain.Preferences
		row := tx.QueryRow(ctx, query, tenantID, userID)
		if err := row.Scan(&p.CutoffHour, &p.UpdatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		prefs = &p
		return nil
	})
	return prefs, err
}

// UpsertPreferences writes the single preferences row for the user.
func (r *Repository) UpsertPreferences(ctx context.Context, tenantID, userID string, prefs domain.Preferences) error {
	const stmt = `INSERT INTO preferences (tenant_id, user_id, cutoff_hour, updated_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (tenant_id, user_id) DO UPDATE SET cutoff_hour=EXCLUDED.cutoff_hour, updated_at=EXCLUDED.updated_at`

	return r.withTenantTx(ctx, tenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, stmt, tenantID, userID, prefs.CutoffHour, prefs.UpdatedAt)
		return err
	})
}

func scanDeed(row pgx.Row) (*domain.Deed, error) {
	var deed domain.Deed
	if err := row.Scan(
		&deed.ID,
		&deed.TenantID,
		&deed.UserID,
		&deed.Name,
		&deed.Emoji,
		&deed.Color,
		&deed.Category,
		&deed.Polarity,
		&deed.UnitType,
		&deed.UnitLabel,
		&deed.PointsPerUnit,
		&deed.DailyCap,
		&deed.Private,
		&deed.ShowOnStats,
		&deed.Archived,
		&deed.SortOrder,
		&deed.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &deed, nil
}

func scanEntry(row pgx.Row) (domain.Entry, error) {
	var entry domain.Entry
	var note *string
	if err := row.Scan(
		&entry.ID,
		&entry.DeedID,
		&entry.Timestamp,
		&entry.Amount,
		&entry.Points,
		&note,
		&entry.CreatedAt,
	); err != nil {
		return domain.Entry{}, err
	}
	if note != nil {
		entry.Note = *note
	}
	return entry, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
