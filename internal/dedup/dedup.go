// Package dedup removes duplicate opportunity records. Two records are
// duplicates when they share a normalized (name, location) key; the oldest
// record per key is canonical and survives.
package dedup

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clinicalpath/enrich-cli/internal/model"
	"github.com/clinicalpath/enrich-cli/internal/store"
)

// Engine deduplicates the record collection.
type Engine struct {
	store store.Store
}

// NewEngine creates a deduplication engine.
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st}
}

// Run scans all records in created_at order and deletes every record whose
// key was already claimed by an older record. Re-running against a clean
// collection removes nothing.
func (e *Engine) Run(ctx context.Context) (*model.DedupResult, error) {
	opps, err := e.store.ListAll(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: list records")
	}

	canonical := make(map[string]string, len(opps))
	var doomed []string
	for _, opp := range opps {
		key := opp.DedupeKey()
		if _, ok := canonical[key]; ok {
			doomed = append(doomed, opp.ID)
			continue
		}
		canonical[key] = opp.ID
	}

	removed := 0
	if len(doomed) > 0 {
		removed, err = e.store.DeleteByIDs(ctx, doomed)
		if err != nil {
			return nil, eris.Wrap(err, "dedup: delete duplicates")
		}
	}

	zap.L().Info("dedup complete",
		zap.Int("scanned", len(opps)),
		zap.Int("removed", removed),
	)

	return &model.DedupResult{Scanned: len(opps), Removed: removed}, nil
}
