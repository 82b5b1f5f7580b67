package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/chriscantu/advisord/internal/memory"
)

// RecordOutcome distributes one advisory exchange to every layer that
// learns from it: the conversation turn, strategic updates, one usage
// record per framework applied, and stakeholder interaction events. The
// sub-writes run concurrently and fail independently; the call errors
// only when the record is invalid or every sub-write failed.
func (o *Orchestrator) RecordOutcome(ctx context.Context, rec memory.OutcomeRecord) error {
	ctx, span := tracer.Start(ctx, "Orchestrator.RecordOutcome")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", rec.SessionID))

	if err := rec.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	type subWrite struct {
		name string
		fn   func(context.Context) error
	}
	var writes []subWrite
	if o.turns != nil {
		writes = append(writes, subWrite{"conversation", func(ctx context.Context) error {
			turn, err := memory.NewConversationTurn(rec.SessionID, rec.Query, rec.Response)
			if err != nil {
				return err
			}
			return o.turns.AppendTurn(ctx, turn)
		}})
	}
	if o.initiatives != nil {
		for _, update := range rec.Initiatives {
			writes = append(writes, subWrite{"strategic", func(ctx context.Context) error {
				_, err := o.initiatives.Apply(ctx, update)
				return err
			}})
		}
	}
	if o.usage != nil {
		effectiveness := estimateEffectiveness(rec)
		for _, framework := range rec.Frameworks {
			writes = append(writes, subWrite{"learning", func(ctx context.Context) error {
				usage, err := memory.NewFrameworkUsage(framework, rec.SessionID, rec.Query, effectiveness)
				if err != nil {
					return err
				}
				return o.usage.RecordUsage(ctx, usage)
			}})
		}
	}
	if o.interactions != nil {
		for _, ev := range rec.Interactions {
			writes = append(writes, subWrite{"stakeholder", func(ctx context.Context) error {
				_, err := o.interactions.RecordInteraction(ctx, ev.StakeholderID, ev.Type, ev.Context, ev.Outcome)
				return err
			}})
		}
	}
	if len(writes) == 0 {
		return nil
	}

	errs := make([]error, len(writes))
	var wg sync.WaitGroup
	for i, w := range writes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.fn(ctx); err != nil {
				errs[i] = fmt.Errorf("%s write: %w", w.name, err)
			}
		}()
	}
	wg.Wait()

	// Any sub-write may have changed what the session would retrieve.
	o.invalidateSession(rec.SessionID)

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	for _, err := range failed {
		o.logger.Warn(ctx, "outcome sub-write failed",
			zap.String("session_id", rec.SessionID),
			zap.Error(err),
		)
	}
	if o.recorder != nil {
		o.recorder.RecordWrite(len(writes), len(failed))
	}
	span.SetAttributes(
		attribute.Int("writes", len(writes)),
		attribute.Int("failures", len(failed)),
	)

	if len(failed) == len(writes) {
		err := fmt.Errorf("%w: %w", memory.ErrAggregateWriteFailure, errors.Join(failed...))
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if o.notifier != nil {
		o.notifier.OutcomeRecorded(ctx, rec)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// estimateEffectiveness scores framework usage when the caller supplied
// no explicit score: the mean sentiment of the recorded interactions, or
// a neutral prior without any.
func estimateEffectiveness(rec memory.OutcomeRecord) float64 {
	if rec.Effectiveness != nil {
		return memory.Clamp01(*rec.Effectiveness)
	}
	if len(rec.Interactions) == 0 {
		return 0.5
	}
	var total float64
	for _, ev := range rec.Interactions {
		switch ev.Outcome {
		case memory.InteractionPositive:
			total++
		case memory.InteractionNegative:
			// counts zero
		default:
			total += 0.5
		}
	}
	return total / float64(len(rec.Interactions))
}
