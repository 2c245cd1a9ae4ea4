// Package importer bulk-imports facility records from the external
// directory into the record store in paginated batches.
package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clinicalpath/enrich-cli/internal/model"
	"github.com/clinicalpath/enrich-cli/internal/notify"
	"github.com/clinicalpath/enrich-cli/internal/store"
	"github.com/clinicalpath/enrich-cli/pkg/directory"
)

// Options controls one import run.
type Options struct {
	// BatchSize is the page size requested from the source per call.
	BatchSize int

	// Offset is the starting offset into the source, for resumed runs.
	Offset int

	// State optionally restricts the source query to one state code.
	State string

	// Target stops the run once this many records have been processed
	// across all batches. Zero means run until the source is exhausted.
	Target int

	// Type is the opportunity type assigned to imported records and
	// checked against MinExisting.
	Type model.OpportunityType

	// MinExisting short-circuits the run when the store already holds at
	// least this many records of Type. Zero disables the check.
	MinExisting int

	// ProgressEvery emits a notification after every N imported records.
	ProgressEvery int
}

// maxFailedBatches ends a run after this many consecutive batch failures;
// the reported NextOffset lets a later run resume once the source recovers.
const maxFailedBatches = 3

// Orchestrator drives paginated bulk imports.
type Orchestrator struct {
	store    store.Store
	source   directory.Client
	notifier notify.Notifier
	pace     *rate.Limiter
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithBatchDelay sets the delay enforced between source calls.
func WithBatchDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pace = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithNotifier sets the progress notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

// New creates an import orchestrator.
func New(st store.Store, src directory.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    st,
		source:   src,
		notifier: notify.NewWebhook(""),
		pace:     rate.NewLimiter(rate.Every(1500*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one import run. Each batch fetch error is recorded and the
// loop advances to the next offset; the run ends when a batch yields fewer
// records than the batch size (source exhausted) or the target is reached.
// The returned NextOffset is the checkpoint for a follow-up run.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*model.ImportResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Type == "" {
		opts.Type = model.TypeHospital
	}

	log := zap.L().With(
		zap.String("engine", "importer"),
		zap.String("type", string(opts.Type)),
		zap.String("state", opts.State),
	)

	result := &model.ImportResult{NextOffset: opts.Offset}

	// Idempotency gate for unattended startup seeding: a collection that
	// already meets the minimum is left alone, with zero source calls.
	if opts.MinExisting > 0 {
		count, err := o.store.CountByType(ctx, opts.Type)
		if err != nil {
			return nil, eris.Wrap(err, "importer: count existing")
		}
		if count >= opts.MinExisting {
			log.Info("import skipped, threshold met",
				zap.Int("existing", count),
				zap.Int("min_existing", opts.MinExisting),
			)
			result.Total = count
			return result, nil
		}
	}

	lastMilestone := 0
	failedBatches := 0
	for offset := opts.Offset; ; offset += opts.BatchSize {
		if offset > opts.Offset {
			if err := o.pace.Wait(ctx); err != nil {
				return result, eris.Wrap(err, "importer: pace batch")
			}
		}

		batch, err := o.importBatch(ctx, offset, opts)
		result.Batches++
		// A batch that errored mid-way may still have landed inserts.
		result.Imported += batch.Imported
		result.Skipped += batch.Skipped
		result.Failed += batch.Failed
		result.NextOffset = offset + opts.BatchSize
		if err != nil {
			if ctx.Err() != nil {
				return result, eris.Wrap(ctx.Err(), "importer: run canceled")
			}
			// One bad batch does not end the run; the next offset may
			// still answer. A streak of them means the source is down.
			log.Warn("batch failed", zap.Int("offset", offset), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("offset %d: %s", offset, strings.TrimSpace(eris.ToString(err, false))))
			failedBatches++
			if failedBatches >= maxFailedBatches {
				log.Warn("aborting run, consecutive batch failures",
					zap.Int("failed_batches", failedBatches),
					zap.Int("next_offset", result.NextOffset),
				)
				break
			}
			continue
		}
		failedBatches = 0

		log.Info("batch complete",
			zap.Int("offset", offset),
			zap.Int("imported", batch.Imported),
			zap.Int("skipped", batch.Skipped),
			zap.Int("failed", batch.Failed),
		)

		if opts.ProgressEvery > 0 && result.Imported/opts.ProgressEvery > lastMilestone {
			lastMilestone = result.Imported / opts.ProgressEvery
			o.notifier.Notify(ctx, notify.Event{
				Source:  "importer",
				Message: fmt.Sprintf("imported %d %s records", result.Imported, opts.Type),
				Details: map[string]any{
					"imported": result.Imported,
					"skipped":  result.Skipped,
					"failed":   result.Failed,
					"offset":   offset,
				},
			})
		}

		if batch.Processed() < opts.BatchSize {
			break // source exhausted
		}
		if opts.Target > 0 && result.Processed() >= opts.Target {
			break
		}
	}

	count, err := o.store.CountByType(ctx, opts.Type)
	if err != nil {
		return nil, eris.Wrap(err, "importer: count after run")
	}
	result.Total = count

	log.Info("import complete",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Int("total", result.Total),
		zap.Int("batches", result.Batches),
	)

	return result, nil
}

// importBatch fetches one source page and inserts its records.
func (o *Orchestrator) importBatch(ctx context.Context, offset int, opts Options) (model.ImportResult, error) {
	var batch model.ImportResult

	facilities, err := o.source.Fetch(ctx, opts.BatchSize, offset, opts.State)
	if err != nil {
		return batch, eris.Wrap(err, "importer: fetch batch")
	}

	for _, f := range facilities {
		opp, ok := mapFacility(f, opts.Type)
		if !ok {
			batch.Skipped++
			continue
		}

		exists, err := o.store.ExistsByNameLocation(ctx, opp.Name, opp.Location)
		if err != nil {
			return batch, eris.Wrap(err, "importer: existence check")
		}
		if exists {
			batch.Skipped++
			continue
		}

		if err := o.store.InsertOpportunities(ctx, []model.Opportunity{opp}); err != nil {
			zap.L().Warn("insert failed",
				zap.String("name", opp.Name),
				zap.Error(err),
			)
			batch.Failed++
			continue
		}
		batch.Imported++
	}

	return batch, nil
}

// mapFacility converts a directory record to an opportunity. Records with
// no usable name or city are not importable.
func mapFacility(f directory.Facility, t model.OpportunityType) (model.Opportunity, bool) {
	name := titleCase(f.Name)
	city := titleCase(f.City)
	if name == "" || city == "" {
		return model.Opportunity{}, false
	}

	location := city
	if state := strings.TrimSpace(f.State); state != "" {
		location = city + ", " + state
	}

	now := time.Now().UTC()
	opp := model.Opportunity{
		ID:                   uuid.New().String(),
		Name:                 name,
		Type:                 t,
		Location:             location,
		Address:              strings.TrimSpace(f.Address),
		AcceptanceLikelihood: model.LikelihoodMedium,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if phone := strings.TrimSpace(f.Phone); phone != "" {
		opp.Phone = &phone
	}
	return opp, true
}

// titleCase normalizes the registry's all-caps names to title case.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
