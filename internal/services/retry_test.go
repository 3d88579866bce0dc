package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/countgate/internal/config"
	"github.com/platformbuilds/countgate/internal/models"
)

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetryPolicy_NoRetryRunsOnce(t *testing.T) {
	calls := 0
	err := NoRetry.Do(context.Background(), func(int) error {
		calls++
		return &models.TransportError{Err: errors.New("refused")}
	}, nil)

	var te *models.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_RetriesTransportErrors(t *testing.T) {
	var attempts []int
	var waits int
	err := fastRetry(3).Do(context.Background(), func(attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return &models.TransportError{Err: errors.New("refused")}
		}
		return nil
	}, func(error, time.Duration) { waits++ })

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Equal(t, 2, waits)
}

func TestRetryPolicy_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := fastRetry(3).Do(context.Background(), func(int) error {
		calls++
		return &models.TransportError{StatusCode: 503, Err: errors.New("unavailable")}
	}, nil)

	var te *models.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 503, te.StatusCode)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_OtherErrorsArePermanent(t *testing.T) {
	calls := 0
	err := fastRetry(5).Do(context.Background(), func(int) error {
		calls++
		return &models.DecodeError{Err: errors.New("bad json")}
	}, nil)

	var de *models.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyFromConfig(t *testing.T) {
	p := RetryPolicyFromConfig(config.RetryConfig{MaxAttempts: 4, InitialInterval: 250, MaxInterval: 5000})
	assert.Equal(t, 4, p.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, p.InitialInterval)
	assert.Equal(t, 5*time.Second, p.MaxInterval)
}

func TestRetryPolicy_Budget(t *testing.T) {
	timeout := 2 * time.Second

	assert.Equal(t, timeout, NoRetry.Budget(timeout))
	assert.Equal(t, timeout, RetryPolicy{}.Budget(timeout))

	// two attempts and one wait of at most 1.5 x 40s
	p := RetryPolicyFromConfig(config.RetryConfig{MaxAttempts: 2, InitialInterval: 40000, MaxInterval: 40000})
	assert.Equal(t, 2*timeout+60*time.Second, p.Budget(timeout))

	// initial interval above the cap still bounds the first wait
	p = RetryPolicy{MaxAttempts: 3, InitialInterval: 10 * time.Second, MaxInterval: time.Second}
	assert.Equal(t, 3*timeout+2*15*time.Second, p.Budget(timeout))
}

func TestRetryPolicy_BudgetCoversActualRun(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, InitialInterval: 10 * time.Millisecond, MaxInterval: 20 * time.Millisecond}
	timeout := 30 * time.Millisecond

	start := time.Now()
	err := p.Do(context.Background(), func(int) error {
		time.Sleep(timeout)
		return &models.TransportError{Err: context.DeadlineExceeded}
	}, nil)
	require.Error(t, err)
	assert.LessOrEqual(t, time.Since(start), p.Budget(timeout)+100*time.Millisecond)
}
