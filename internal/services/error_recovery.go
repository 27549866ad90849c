package services

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryPolicy defines retry behavior for failed operations
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryPolicies returns the retry policies for startup dependencies.
func DefaultRetryPolicies() map[string]RetryPolicy {
	return map[string]RetryPolicy{
		"database_connect": {
			MaxRetries:    5,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		},
		"redis_connect": {
			MaxRetries:    3,
			InitialDelay:  250 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		},
	}
}

// ExecuteWithRetry runs operation until it succeeds, the policy's retries are
// exhausted or ctx is done. It returns the last operation error, or the
// context error if ctx ended first.
func ExecuteWithRetry(ctx context.Context, operationName string, policy RetryPolicy, operation func(context.Context) error) error {
	start := time.Now()
	delay := policy.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 0 {
				logrus.WithFields(logrus.Fields{
					"operation": operationName,
					"attempts":  attempt + 1,
					"duration":  time.Since(start).String(),
				}).Info("Operation recovered after retry")
			}
			return nil
		}
		lastErr = err

		if attempt == policy.MaxRetries {
			break
		}

		wait := retryDelay(delay, policy)
		logrus.WithFields(logrus.Fields{
			"operation": operationName,
			"attempt":   attempt + 1,
			"error":     err.Error(),
			"delay":     wait.String(),
		}).Warn("Operation failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * policy.BackoffFactor)
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	logrus.WithFields(logrus.Fields{
		"operation": operationName,
		"attempts":  policy.MaxRetries + 1,
		"duration":  time.Since(start).String(),
		"error":     lastErr.Error(),
	}).Error("Operation failed after all retries")
	return lastErr
}

// retryDelay adds up to ±12.5% jitter when enabled.
func retryDelay(base time.Duration, policy RetryPolicy) time.Duration {
	if !policy.JitterEnabled || base <= 0 {
		return base
	}
	jitter := time.Duration(float64(base) * 0.25 * (rand.Float64() - 0.5))
	return base + jitter
}
