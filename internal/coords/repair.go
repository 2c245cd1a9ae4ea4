// Package coords finds opportunity records with missing or out-of-bounds
// coordinates and repairs them through the geocoder in fixed-size batches.
// Each Repair invocation is self-contained and reports remaining work, so
// an operator drives the worklist to zero across repeated calls.
package coords

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clinicalpath/enrich-cli/internal/model"
	"github.com/clinicalpath/enrich-cli/internal/store"
	"github.com/clinicalpath/enrich-cli/internal/validate"
	"github.com/clinicalpath/enrich-cli/pkg/geocode"
)

// Engine repairs record coordinates.
type Engine struct {
	store    store.Store
	geocoder geocode.Client
	pace     *rate.Limiter
}

// Option configures the engine.
type Option func(*Engine)

// WithBatchDelay sets the delay enforced between geocoding batches.
func WithBatchDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pace = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// NewEngine creates a coordinate repair engine.
func NewEngine(st store.Store, gc geocode.Client, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		geocoder: gc,
		pace:     rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// FindNeedingRepair scans all records and returns the ids whose coordinate
// pair is missing or falls outside the service bounding box, in collection
// order.
func (e *Engine) FindNeedingRepair(ctx context.Context) ([]string, error) {
	opps, err := e.store.ListAll(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "coords: list records")
	}

	var ids []string
	for _, opp := range opps {
		if !validate.ValidCoordinatePair(opp.Latitude, opp.Longitude) {
			ids = append(ids, opp.ID)
		}
	}
	return ids, nil
}

// Repair geocodes the given worklist in batches of batchSize. The returned
// result carries running totals plus the untouched remainder of the
// worklist as a checkpoint, so a caller can resume mid-worklist without a
// fresh scan. Per-record geocode misses count as failures; a canceled
// context ends the run at a batch boundary.
func (e *Engine) Repair(ctx context.Context, ids []string, batchSize int) (*model.RepairResult, error) {
	if batchSize <= 0 {
		batchSize = 25
	}

	log := zap.L().With(zap.String("engine", "coords"))
	result := &model.RepairResult{Remaining: len(ids)}

	for start := 0; start < len(ids); start += batchSize {
		if start > 0 {
			if err := e.pace.Wait(ctx); err != nil {
				result.Checkpoint = ids[start:]
				result.Remaining = len(result.Checkpoint)
				return result, eris.Wrap(err, "coords: pace batch")
			}
		}

		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}

		for _, id := range ids[start:end] {
			if err := e.repairOne(ctx, id); err != nil {
				if ctx.Err() != nil {
					result.Checkpoint = ids[start:]
					result.Remaining = len(result.Checkpoint)
					return result, eris.Wrap(ctx.Err(), "coords: repair canceled")
				}
				log.Warn("repair failed", zap.String("id", id), zap.Error(err))
				result.Failed++
				continue
			}
			result.Geocoded++
		}

		result.Remaining = len(ids) - end
		log.Info("batch complete",
			zap.Int("processed", end),
			zap.Int("geocoded", result.Geocoded),
			zap.Int("failed", result.Failed),
			zap.Int("remaining", result.Remaining),
		)
	}

	result.Checkpoint = nil
	return result, nil
}

// repairOne geocodes a single record and, when its location lacks a state
// suffix, completes it via reverse geocoding.
func (e *Engine) repairOne(ctx context.Context, id string) error {
	opp, err := e.store.GetOpportunity(ctx, id)
	if err != nil {
		return eris.Wrap(err, "coords: load record")
	}

	query := geocodeQuery(*opp)
	loc, err := e.geocoder.Locate(ctx, query)
	if err != nil {
		return eris.Wrapf(err, "coords: geocode %q", query)
	}
	if !loc.Matched {
		return eris.Errorf("coords: no match for %q", query)
	}
	if !validate.ValidCoordinates(loc.Latitude, loc.Longitude) {
		return eris.Errorf("coords: geocoded point out of bounds for %q", query)
	}

	if err := e.store.UpdateCoordinates(ctx, id, loc.Latitude, loc.Longitude); err != nil {
		return eris.Wrap(err, "coords: persist coordinates")
	}

	if !opp.HasState() {
		state, err := e.geocoder.ReverseState(ctx, loc.Latitude, loc.Longitude)
		if err != nil {
			// Coordinates landed; the state suffix is best-effort.
			zap.L().Debug("reverse geocode failed", zap.String("id", id), zap.Error(err))
			return nil
		}
		if state != "" {
			completed := fmt.Sprintf("%s, %s", opp.Location, state)
			if err := e.store.UpdateLocation(ctx, id, completed); err != nil {
				return eris.Wrap(err, "coords: persist location")
			}
		}
	}

	return nil
}

// geocodeQuery builds the one-line geocoder input for a record, preferring
// the street address when present.
func geocodeQuery(opp model.Opportunity) string {
	if opp.Address != "" {
		return fmt.Sprintf("%s, %s", opp.Address, opp.Location)
	}
	return fmt.Sprintf("%s, %s", opp.Name, opp.Location)
}
