package scheduler

import (
	"math"
	"sync"
	"time"
)

// RetryPolicy configures the retry ceiling and exponential backoff shared by
// every backend's failure-handling path (Run itself does not apply it).
// Folded from the duplicated RetryManager found in both the cluster-style
// and cloud-batch-style backends of the system this was distilled from.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	ExponentialBackoff bool
	BackoffMultiplier float64
}

// DefaultRetryPolicy matches the documented defaults: 3 retries, 5s base
// delay, 2x exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:         3,
		BaseDelay:          5 * time.Second,
		ExponentialBackoff: true,
		BackoffMultiplier:  2.0,
	}
}

// RetryManager tracks attempt counts per task and decides whether/when to
// retry, independent of which backend is driving the retry.
type RetryManager struct {
	policy      RetryPolicy
	mu          sync.Mutex
	retryCounts map[string]int
}

func NewRetryManager(policy RetryPolicy) *RetryManager {
	return &RetryManager{policy: policy, retryCounts: make(map[string]int)}
}

// ShouldRetry reports whether taskID has not yet exhausted its retry
// ceiling. A task is allowed exactly MaxRetries retries after its initial
// attempt, i.e. MaxRetries+1 attempts total.
func (rm *RetryManager) ShouldRetry(taskID string) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.retryCounts[taskID] < rm.policy.MaxRetries
}

// RecordAttempt increments and returns the new retry count for taskID.
func (rm *RetryManager) RecordAttempt(taskID string) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.retryCounts[taskID]++
	return rm.retryCounts[taskID]
}

// GetRetryCount returns the number of retries recorded so far for taskID.
func (rm *RetryManager) GetRetryCount(taskID string) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.retryCounts[taskID]
}

// GetDelay returns how long to wait before the next retry of taskID.
func (rm *RetryManager) GetDelay(taskID string) time.Duration {
	rm.mu.Lock()
	attempts := rm.retryCounts[taskID]
	rm.mu.Unlock()

	if !rm.policy.ExponentialBackoff || attempts <= 1 {
		return rm.policy.BaseDelay
	}
	// delay = base_delay * multiplier^(attempts-1)
	factor := math.Pow(rm.policy.BackoffMultiplier, float64(attempts-1))
	return time.Duration(float64(rm.policy.BaseDelay) * factor)
}
