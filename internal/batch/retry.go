package batch

import (
	"context"

	"go.uber.org/zap"

	"github.com/formweaver/formweaver/api/schemas"
)

// RetryResult partitions the replayed rows into those that eventually
// succeeded and those that exhausted their attempts.
type RetryResult struct {
	Succeeded []any
	Failures  []schemas.FailureRecord
}

// RetryFailedSubmissions replays failed rows under a bounded-attempt policy.
// Each record resumes from its recorded attempt count; the engine waits the
// policy delay before every replay. Rows that exhaust their attempts are
// returned carrying the final attempt count and last error, never dropped.
func (e *Engine) RetryFailedSubmissions(ctx context.Context, failures []schemas.FailureRecord, policy schemas.RetryPolicy) (*RetryResult, error) {
	policy = normalizePolicy(policy)
	result := &RetryResult{}

	log := e.logger.With(zap.Int("max_attempts", policy.MaxAttempts))
	log.Info("Retrying failed submissions", zap.Int("count", len(failures)))

	for _, rec := range failures {
		if err := ctx.Err(); err != nil {
			// Unprocessed records keep their current state so nothing is
			// silently lost on cancellation.
			result.Failures = append(result.Failures, rec)
			continue
		}

		attempt := rec.Attempt
		if attempt < 1 {
			attempt = 1
		}

		recovered := false
		for attempt <= policy.MaxAttempts {
			pause(ctx, policy.RetryDelay)
			if ctx.Err() != nil {
				break
			}

			out, err := e.processRow(ctx, rec.Profile, rec.Row)
			if err == nil {
				result.Succeeded = append(result.Succeeded, out)
				recovered = true
				break
			}
			if ctx.Err() != nil {
				// Cancelled mid-attempt: keep the record's last real error
				// instead of burning the remaining attempts against a dead
				// context.
				break
			}
			attempt++
			rec.Error = err.Error()
			log.Debug("Retry attempt failed",
				zap.String("profile", rec.Profile),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}

		if !recovered {
			rec.Attempt = attempt
			result.Failures = append(result.Failures, rec)
		}
	}

	log.Info("Retry pass finished",
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("exhausted", len(result.Failures)))
	return result, nil
}

func normalizePolicy(p schemas.RetryPolicy) schemas.RetryPolicy {
	def := schemas.DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = def.RetryDelay
	}
	return p
}
