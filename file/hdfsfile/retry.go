package hdfsfile

import (
	"context"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/retry"
)

var (
	// BackoffPolicy defines backoff timing parameters. It is exposed publicly
	// only for unittests.
	BackoffPolicy = retry.MaxRetries(retry.Backoff(500*time.Millisecond, 30*time.Second, 1.5), 12)

	// MaxRetryDuration defines the max amount of time a request can spend
	// retrying on errors. It must cover a namenode failover or the namenode
	// leaving safe mode after a restart.
	MaxRetryDuration = 10 * time.Minute
)

type retrier struct {
	policy        retry.Policy
	progress      *metricOpProgress
	startTime     time.Time // the time requested started.
	retryDeadline time.Time // when to give up retrying.
	retries       int
	waitErr       error // error happened during wait, typically deadline or cancellation.
}

func newRetrier(progress *metricOpProgress) *retrier {
	now := time.Now()
	return &retrier{
		policy:        BackoffPolicy,
		progress:      progress,
		startTime:     now,
		retryDeadline: now.Add(MaxRetryDuration),
	}
}

// shouldRetry determines if the caller should retry after seeing the given
// error. It sleeps per the policy before returning true.
func (r *retrier) shouldRetry(ctx context.Context, err error, message string) bool {
	if err == nil || !isTemporary(err) {
		return false
	}
	log.Printf("retry %s: %v", message, err)
	ctx2, cancel := context.WithDeadline(ctx, r.retryDeadline)
	r.waitErr = retry.Wait(ctx2, r.policy, r.retries)
	cancel()
	if r.waitErr != nil {
		// Context timeout, cancellation, or too many tries.
		return false
	}
	r.retries++
	if r.progress != nil {
		r.progress.Retry()
	}
	return true
}
