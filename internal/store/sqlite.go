package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/clinicalpath/enrich-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS opportunities (
	id                    TEXT PRIMARY KEY,
	name                  TEXT NOT NULL,
	type                  TEXT NOT NULL,
	location              TEXT NOT NULL,
	address               TEXT NOT NULL DEFAULT '',
	latitude              REAL,
	longitude             REAL,
	website               TEXT,
	email                 TEXT,
	phone                 TEXT,
	requirements          TEXT NOT NULL DEFAULT '[]',
	hours_required        TEXT NOT NULL DEFAULT '',
	acceptance_likelihood TEXT NOT NULL DEFAULT '',
	created_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	created_by            TEXT
);

CREATE INDEX IF NOT EXISTS idx_opportunities_type ON opportunities(type);
CREATE INDEX IF NOT EXISTS idx_opportunities_created_at ON opportunities(created_at);
CREATE INDEX IF NOT EXISTS idx_opportunities_name_location ON opportunities(name, location);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteColumns = `id, name, type, location, address, latitude, longitude,
	website, email, phone, requirements, hours_required, acceptance_likelihood,
	created_at, updated_at, created_by`

func (s *SQLiteStore) CountByType(ctx context.Context, t model.OpportunityType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM opportunities WHERE type = ?`, string(t),
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count by type")
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]model.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM opportunities ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list all")
	}
	defer rows.Close()
	return collectOpportunities(rows)
}

func (s *SQLiteStore) ListMissingLinks(ctx context.Context, t model.OpportunityType, limit int) ([]model.Opportunity, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + sqliteColumns + ` FROM opportunities
		WHERE (website IS NULL OR email IS NULL)`
	var args []any
	if t != "" {
		query += ` AND type = ?`
		args = append(args, string(t))
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list missing links")
	}
	defer rows.Close()
	return collectOpportunities(rows)
}

func (s *SQLiteStore) GetOpportunity(ctx context.Context, id string) (*model.Opportunity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM opportunities WHERE id = ?`, id,
	)
	opp, err := scanOpportunity(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("opportunity not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get opportunity")
	}
	return opp, nil
}

func (s *SQLiteStore) ExistsByNameLocation(ctx context.Context, name, location string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM opportunities
		 WHERE lower(trim(name)) = lower(trim(?)) AND lower(trim(location)) = lower(trim(?))`,
		name, location,
	).Scan(&n)
	return n > 0, eris.Wrap(err, "sqlite: exists by name+location")
}

func (s *SQLiteStore) InsertOpportunities(ctx context.Context, opps []model.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO opportunities (`+sqliteColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	for _, o := range opps {
		reqJSON, err := json.Marshal(o.Requirements)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal requirements for %s", o.ID)
		}
		_, err = stmt.ExecContext(ctx,
			o.ID, o.Name, string(o.Type), o.Location, o.Address,
			o.Latitude, o.Longitude, o.Website, o.Email, o.Phone,
			string(reqJSON), o.HoursRequired, string(o.AcceptanceLikelihood),
			o.CreatedAt.UTC(), o.UpdatedAt.UTC(), o.CreatedBy,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert opportunity %s", o.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit insert")
}

func (s *SQLiteStore) UpdateWebsite(ctx context.Context, id, website string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE opportunities SET website = ?, updated_at = ? WHERE id = ?`,
		website, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update website %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) UpdateEmail(ctx context.Context, id, email string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE opportunities SET email = ?, updated_at = ? WHERE id = ?`,
		email, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update email %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) UpdateCoordinates(ctx context.Context, id string, lat, lng float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE opportunities SET latitude = ?, longitude = ?, updated_at = ? WHERE id = ?`,
		lat, lng, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update coordinates %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) UpdateLocation(ctx context.Context, id, location string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE opportunities SET location = ?, updated_at = ? WHERE id = ?`,
		location, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update location %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM opportunities WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete by ids")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("opportunity not found: %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanOpportunity(row scannable) (*model.Opportunity, error) {
	var o model.Opportunity
	var typ, likelihood, reqJSON string
	var lat, lng sql.NullFloat64
	var website, email, phone, createdBy sql.NullString

	err := row.Scan(
		&o.ID, &o.Name, &typ, &o.Location, &o.Address,
		&lat, &lng, &website, &email, &phone,
		&reqJSON, &o.HoursRequired, &likelihood,
		&o.CreatedAt, &o.UpdatedAt, &createdBy,
	)
	if err != nil {
		return nil, err
	}

	o.Type = model.OpportunityType(typ)
	o.AcceptanceLikelihood = model.AcceptanceLikelihood(likelihood)
	if lat.Valid {
		o.Latitude = &lat.Float64
	}
	if lng.Valid {
		o.Longitude = &lng.Float64
	}
	if website.Valid {
		o.Website = &website.String
	}
	if email.Valid {
		o.Email = &email.String
	}
	if phone.Valid {
		o.Phone = &phone.String
	}
	if createdBy.Valid {
		o.CreatedBy = &createdBy.String
	}
	if reqJSON != "" {
		if err := json.Unmarshal([]byte(reqJSON), &o.Requirements); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal requirements")
		}
	}
	return &o, nil
}

func collectOpportunities(rows *sql.Rows) ([]model.Opportunity, error) {
	var opps []model.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan opportunity")
		}
		opps = append(opps, *o)
	}
	return opps, eris.Wrap(rows.Err(), "sqlite: iterate")
}
