package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/clinicalpath/enrich-cli/internal/db"
	"github.com/clinicalpath/enrich-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS opportunities (
	id                    TEXT PRIMARY KEY,
	name                  TEXT NOT NULL,
	type                  TEXT NOT NULL,
	location              TEXT NOT NULL,
	address               TEXT NOT NULL DEFAULT '',
	latitude              DOUBLE PRECISION,
	longitude             DOUBLE PRECISION,
	website               TEXT,
	email                 TEXT,
	phone                 TEXT,
	requirements          JSONB NOT NULL DEFAULT '[]',
	hours_required        TEXT NOT NULL DEFAULT '',
	acceptance_likelihood TEXT NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_by            TEXT
);

CREATE INDEX IF NOT EXISTS idx_opportunities_type ON opportunities(type);
CREATE INDEX IF NOT EXISTS idx_opportunities_created_at ON opportunities(created_at);
CREATE INDEX IF NOT EXISTS idx_opportunities_name_location ON opportunities(name, location);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const postgresColumns = `id, name, type, location, address, latitude, longitude,
	website, email, phone, requirements, hours_required, acceptance_likelihood,
	created_at, updated_at, created_by`

func (s *PostgresStore) CountByType(ctx context.Context, t model.OpportunityType) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM opportunities WHERE type = $1`, string(t),
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count by type")
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]model.Opportunity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+postgresColumns+` FROM opportunities ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list all")
	}
	defer rows.Close()
	return collectPgOpportunities(rows)
}

func (s *PostgresStore) ListMissingLinks(ctx context.Context, t model.OpportunityType, limit int) ([]model.Opportunity, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + postgresColumns + ` FROM opportunities
		WHERE (website IS NULL OR email IS NULL)`
	args := []any{}
	if t != "" {
		query += ` AND type = $1 ORDER BY created_at ASC, id ASC LIMIT $2`
		args = append(args, string(t), limit)
	} else {
		query += ` ORDER BY created_at ASC, id ASC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list missing links")
	}
	defer rows.Close()
	return collectPgOpportunities(rows)
}

func (s *PostgresStore) GetOpportunity(ctx context.Context, id string) (*model.Opportunity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresColumns+` FROM opportunities WHERE id = $1`, id,
	)
	opp, err := scanPgOpportunity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("opportunity not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get opportunity")
	}
	return opp, nil
}

func (s *PostgresStore) ExistsByNameLocation(ctx context.Context, name, location string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM opportunities
			WHERE lower(trim(name)) = lower(trim($1)) AND lower(trim(location)) = lower(trim($2))
		)`, name, location,
	).Scan(&exists)
	return exists, eris.Wrap(err, "postgres: exists by name+location")
}

func (s *PostgresStore) InsertOpportunities(ctx context.Context, opps []model.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin insert")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, o := range opps {
		reqJSON, err := json.Marshal(o.Requirements)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal requirements for %s", o.ID)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO opportunities (`+postgresColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			o.ID, o.Name, string(o.Type), o.Location, o.Address,
			o.Latitude, o.Longitude, o.Website, o.Email, o.Phone,
			string(reqJSON), o.HoursRequired, string(o.AcceptanceLikelihood),
			o.CreatedAt.UTC(), o.UpdatedAt.UTC(), o.CreatedBy,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert opportunity %s", o.ID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit insert")
}

func (s *PostgresStore) UpdateWebsite(ctx context.Context, id, website string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE opportunities SET website = $1, updated_at = $2 WHERE id = $3`,
		website, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update website %s", id)
	}
	return checkPgRowsAffected(tag.RowsAffected(), id)
}

func (s *PostgresStore) UpdateEmail(ctx context.Context, id, email string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE opportunities SET email = $1, updated_at = $2 WHERE id = $3`,
		email, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update email %s", id)
	}
	return checkPgRowsAffected(tag.RowsAffected(), id)
}

func (s *PostgresStore) UpdateCoordinates(ctx context.Context, id string, lat, lng float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE opportunities SET latitude = $1, longitude = $2, updated_at = $3 WHERE id = $4`,
		lat, lng, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update coordinates %s", id)
	}
	return checkPgRowsAffected(tag.RowsAffected(), id)
}

func (s *PostgresStore) UpdateLocation(ctx context.Context, id, location string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE opportunities SET location = $1, updated_at = $2 WHERE id = $3`,
		location, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update location %s", id)
	}
	return checkPgRowsAffected(tag.RowsAffected(), id)
}

func (s *PostgresStore) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM opportunities WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete by ids")
	}
	return int(tag.RowsAffected()), nil
}

// helpers

func checkPgRowsAffected(n int64, id string) error {
	if n == 0 {
		return eris.Errorf("opportunity not found: %s", id)
	}
	return nil
}

func scanPgOpportunity(row pgx.Row) (*model.Opportunity, error) {
	var o model.Opportunity
	var typ, likelihood string
	var reqJSON []byte

	err := row.Scan(
		&o.ID, &o.Name, &typ, &o.Location, &o.Address,
		&o.Latitude, &o.Longitude, &o.Website, &o.Email, &o.Phone,
		&reqJSON, &o.HoursRequired, &likelihood,
		&o.CreatedAt, &o.UpdatedAt, &o.CreatedBy,
	)
	if err != nil {
		return nil, err
	}

	o.Type = model.OpportunityType(typ)
	o.AcceptanceLikelihood = model.AcceptanceLikelihood(likelihood)
	if len(reqJSON) > 0 {
		if err := json.Unmarshal(reqJSON, &o.Requirements); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal requirements")
		}
	}
	return &o, nil
}

func collectPgOpportunities(rows pgx.Rows) ([]model.Opportunity, error) {
	var opps []model.Opportunity
	for rows.Next() {
		o, err := scanPgOpportunity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan opportunity")
		}
		opps = append(opps, *o)
	}
	return opps, eris.Wrap(rows.Err(), "postgres: iterate")
}
