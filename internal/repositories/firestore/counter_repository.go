package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/artisanshop/api/internal/platform/firestore"
	"github.com/artisanshop/api/internal/repositories"
)

// Order numbers come from named sequences stored one document per sequence.
// The increment runs inside a Firestore transaction so two checkouts can
// never be handed the same number.
const sequencesCollection = "sequences"

type sequenceDocument struct {
	Value     int64     `firestore:"value"`
	Step      int64     `firestore:"step"`
	Limit     *int64    `firestore:"limit,omitempty"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// advance applies one increment to the sequence, falling back to the stored
// step and then to 1 when the caller passes no step.
func (d *sequenceDocument) advance(step int64, now time.Time) int64 {
	if step <= 0 {
		step = d.Step
	}
	if step <= 0 {
		step = 1
	}
	d.Value += step
	d.Step = step
	d.UpdatedAt = now
	return d.Value
}

// CounterRepository hands out transaction-safe sequence numbers, used for
// human-readable order numbers.
type CounterRepository struct {
	provider  *pfirestore.Provider
	sequences *pfirestore.BaseRepository[sequenceDocument]
}

func NewCounterRepository(provider *pfirestore.Provider) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("counter repository requires firestore provider")
	}
	return &CounterRepository{
		provider:  provider,
		sequences: pfirestore.NewBaseRepository[sequenceDocument](provider, sequencesCollection, nil, nil),
	}, nil
}

// Next increments the named sequence and returns the new value. A sequence
// that does not exist yet is created holding its first value, so callers
// never have to seed sequences out of band.
func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("counter repository not initialised")
	}
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}
	if step < 0 {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, fmt.Sprintf("step must be positive, got %d", step), nil)
	}

	now := time.Now().UTC()
	var next int64

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.sequences.DocumentRef(ctx, id)
		if err != nil {
			return err
		}

		snapshot, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			var doc sequenceDocument
			next = doc.advance(step, now)
			return tx.Create(ref, doc)
		}
		if err != nil {
			return err
		}

		var doc sequenceDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore sequences decode %s: %w", id, err)
		}

		candidate := doc
		value := candidate.advance(step, now)
		if candidate.Limit != nil && value > *candidate.Limit {
			return repositories.NewCounterError(repositories.CounterErrorExhausted, fmt.Sprintf("counter %s exceeded max value %d", id, *candidate.Limit), nil)
		}

		if err := tx.Set(ref, candidate); err != nil {
			return err
		}
		next = value
		return nil
	})
	if err != nil {
		var counterErr *repositories.CounterError
		if errors.As(err, &counterErr) {
			return 0, counterErr
		}
		return 0, pfirestore.WrapError("sequences.next", err)
	}
	return next, nil
}

// Configure adjusts a sequence's step, limit, or current value. Used by
// operational tooling, for example to start a new year's order numbers at a
// chosen offset.
func (r *CounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	if r == nil || r.provider == nil {
		return errors.New("counter repository not initialised")
	}
	id := strings.TrimSpace(counterID)
	if id == "" {
		return repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}

	payload := map[string]any{"updatedAt": time.Now().UTC()}
	if cfg.Step > 0 {
		payload["step"] = cfg.Step
	}
	if cfg.MaxValue != nil {
		payload["limit"] = *cfg.MaxValue
	}
	if cfg.InitialValue != nil {
		payload["value"] = *cfg.InitialValue
	}

	ref, err := r.sequences.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, payload, firestore.MergeAll); err != nil {
		return pfirestore.WrapError("sequences.configure", err)
	}
	return nil
}
