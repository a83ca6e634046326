package enrich

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/biomonlab/chemtable/pkg/table"
)

// Sink persists a snapshot of the in-progress output table. Implementations
// must write atomically: a snapshot is either fully persisted or not at all.
type Sink interface {
	Persist(ctx context.Context, t table.Table) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, t table.Table) error

func (f SinkFunc) Persist(ctx context.Context, t table.Table) error {
	return f(ctx, t)
}

type Options struct {
	// MaxRetries is the inline retry budget per key for transient failures.
	MaxRetries int
	// RequestTimeout bounds each lookup attempt; a timeout is transient.
	RequestTimeout time.Duration

	// RateLimitRPS is a global limit across all lookup calls. Set to <=0 to
	// disable.
	RateLimitRPS float64

	// FlushEvery persists the accumulated output after this many newly
	// resolved rows. Default 1: an interruption loses at most the row in
	// flight.
	FlushEvery int

	// BackoffInitial is the initial sleep before retrying a transient failure.
	BackoffInitial time.Duration
	// BackoffMax caps exponential backoff.
	BackoffMax time.Duration
	// BackoffJitterFrac applies +/- jitter to backoff sleeps (0.2 = +/-20%).
	BackoffJitterFrac float64
}

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.FlushEvery <= 0 {
		o.FlushEvery = 1
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 200 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Second
	}
	if o.BackoffJitterFrac <= 0 {
		o.BackoffJitterFrac = 0.2
	}
	return o
}

// UnreachableError reports that the lookup service appears unreachable: the
// run's first lookup exhausted its retry budget on a transient failure
// before anything resolved.
type UnreachableError struct {
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("lookup service unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// Run applies lookup to every pending row of the table, in input order, and
// returns the table with the attribute's value/status/error columns
// populated plus the final state.
//
// Rows whose key is already terminal in prior are reused without a lookup
// call, so re-running with the previous output's state is idempotent.
// Per-key failures are recorded and do not abort the run; rows left pending
// by exhausted transient failures become eligible again on the next run.
// After every FlushEvery resolutions the current output is persisted through
// sink (pass nil to skip incremental persistence).
//
// On cancellation the outcomes resolved so far are flushed and ctx.Err() is
// returned with the partial table and state, which a later run can resume
// from.
func Run(
	ctx context.Context,
	t table.Table,
	keyColumn, attr string,
	lookup Lookup,
	prior State,
	sink Sink,
	opts Options,
) (table.Table, State, error) {
	opts = opts.withDefaults()

	keyIdx, err := t.Col(keyColumn)
	if err != nil {
		return table.Table{}, nil, err
	}

	state := make(State)
	if prior != nil {
		state.Merge(prior)
	}

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	flush := func(fctx context.Context) (table.Table, error) {
		out, err := state.Apply(t, keyColumn, attr)
		if err != nil {
			return table.Table{}, err
		}
		if sink != nil {
			if err := sink.Persist(fctx, out); err != nil {
				return table.Table{}, fmt.Errorf("persist progress: %w", err)
			}
		}
		return out, nil
	}

	attempted := 0
	sinceFlush := 0
	for _, row := range t.Rows {
		if err := ctx.Err(); err != nil {
			out, ferr := flush(context.WithoutCancel(ctx))
			if ferr != nil {
				return table.Table{}, state, errors.Join(err, ferr)
			}
			return out, state, err
		}

		key := row[keyIdx]
		if state.Resolved(key) {
			continue
		}

		attempted++
		value, err := lookupWithRetry(ctx, lookup, key, limiter, opts)
		switch {
		case err == nil:
			state[key] = Outcome{Value: value, Status: StatusOK}
		case errors.Is(err, ErrNotFound):
			state[key] = Outcome{Status: StatusNotFound}
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			// Cancellation mid-lookup: nothing recorded for this key. The
			// loop-top check (or the final flush below, on the last row)
			// persists what resolved so far and surfaces ctx.Err().
			continue
		case isTransient(err):
			// Left pending: eligible again on the next run. If not even the
			// first lookup of the run got through, treat the service as down
			// instead of burning the rest of the table.
			if attempted == 1 {
				out, ferr := flush(ctx)
				if ferr != nil {
					return table.Table{}, state, ferr
				}
				return out, state, &UnreachableError{Err: err}
			}
		default:
			state[key] = Outcome{Status: StatusError, Err: err.Error()}
		}

		if state.Resolved(key) {
			sinceFlush++
			if sinceFlush >= opts.FlushEvery {
				if _, err := flush(ctx); err != nil {
					return table.Table{}, state, err
				}
				sinceFlush = 0
			}
		}
	}

	out, err := flush(context.WithoutCancel(ctx))
	if err != nil {
		return table.Table{}, state, err
	}
	return out, state, ctx.Err()
}

func lookupWithRetry(
	ctx context.Context,
	lookup Lookup,
	key string,
	limiter *rate.Limiter,
	opts Options,
) (string, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		reqCtx := ctx
		var cancel context.CancelFunc
		if opts.RequestTimeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, opts.RequestTimeout)
		}
		value, err := lookup.Lookup(reqCtx, key)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return value, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err

		maxRetries := maxExtraRetries(opts.MaxRetries, err)
		if !isTransient(err) || attempt >= maxRetries {
			return "", lastErr
		}

		sleep := backoffSleep(opts.BackoffInitial, opts.BackoffMax, opts.BackoffJitterFrac, attempt)
		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		}
	}
}

type retryCap interface {
	MaxExtraRetries() int
}

func maxExtraRetries(defaultRetries int, err error) int {
	if defaultRetries < 0 {
		defaultRetries = 0
	}
	var capErr retryCap
	if errors.As(err, &capErr) {
		limited := capErr.MaxExtraRetries()
		if limited < 0 {
			limited = 0
		}
		if limited < defaultRetries {
			return limited
		}
	}
	return defaultRetries
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var lte *LimitedTransientError
	if errors.As(err, &lte) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func backoffSleep(initial, max time.Duration, jitterFrac float64, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < max; i++ {
		sleep *= 2
		if sleep > max {
			sleep = max
			break
		}
	}
	if jitterFrac <= 0 {
		return sleep
	}
	// Apply +/- jitterFrac.
	j := 1 + (rand.Float64()*2-1)*jitterFrac
	return time.Duration(float64(sleep) * j)
}
