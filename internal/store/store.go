// Package store defines the record store interface the enrichment engines
// write through, with SQLite and Postgres implementations.
package store

import (
	"context"

	"github.com/clinicalpath/enrich-cli/internal/model"
)

// Store is the persistence interface for opportunity records. Writes are
// narrow and targeted (one record, one field group); no call spans a whole
// engine run.
type Store interface {
	// Reads
	CountByType(ctx context.Context, t model.OpportunityType) (int, error)
	ListAll(ctx context.Context) ([]model.Opportunity, error)
	ListMissingLinks(ctx context.Context, t model.OpportunityType, limit int) ([]model.Opportunity, error)
	GetOpportunity(ctx context.Context, id string) (*model.Opportunity, error)
	ExistsByNameLocation(ctx context.Context, name, location string) (bool, error)

	// Writes
	InsertOpportunities(ctx context.Context, opps []model.Opportunity) error
	UpdateWebsite(ctx context.Context, id, website string) error
	UpdateEmail(ctx context.Context, id, email string) error
	UpdateCoordinates(ctx context.Context, id string, lat, lng float64) error
	UpdateLocation(ctx context.Context, id, location string) error
	DeleteByIDs(ctx context.Context, ids []string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
