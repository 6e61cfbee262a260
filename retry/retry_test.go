package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialDelay: 10 * time.Millisecond, Multiplier: 2}
}

func TestDo_Success(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestDo_EventualSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(5), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestDo_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		attempts++
		return expectedErr
	})

	require.Error(t, err)
	assert.Equal(t, expectedErr, err, "should return the last error")
	assert.Equal(t, 3, attempts, "should attempt exactly MaxAttempts times")
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, fastPolicy(10), func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 2, "should stop when context is canceled")
}

func TestDo_ExponentialBackoff(t *testing.T) {
	attempts := 0
	var delays []time.Duration
	lastTime := time.Now()

	err := Do(context.Background(), fastPolicy(5), func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			delays = append(delays, time.Since(lastTime))
		}
		lastTime = time.Now()
		if attempts < 4 {
			return errors.New("error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
	require.Len(t, delays, 3)
	assert.Greater(t, delays[1], delays[0], "second delay should be greater than first")
	assert.Greater(t, delays[2], delays[1], "third delay should be greater than second")
}

func TestPolicyDelay(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, 1500*time.Millisecond, p.Delay(1))
	assert.Equal(t, 3000*time.Millisecond, p.Delay(2))
	assert.Equal(t, 6000*time.Millisecond, p.Delay(3))

	fixed := Policy{MaxAttempts: 3, InitialDelay: time.Second, Multiplier: 1}
	assert.Equal(t, time.Second, fixed.Delay(3))
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr error
	}{
		{"default", DefaultPolicy(), nil},
		{"zero attempts", Policy{MaxAttempts: 0, Multiplier: 1}, ErrInvalidMaxAttempts},
		{"negative attempts", Policy{MaxAttempts: -1, Multiplier: 1}, ErrInvalidMaxAttempts},
		{"negative delay", Policy{MaxAttempts: 1, InitialDelay: -time.Second, Multiplier: 1}, ErrInvalidDelay},
		{"shrinking delay", Policy{MaxAttempts: 1, Multiplier: 0.5}, ErrInvalidMultiplier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDo_InvalidPolicyNeverAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Policy{MaxAttempts: 0, Multiplier: 1}, func(ctx context.Context) error {
		attempts++
		return nil
	})

	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	assert.Equal(t, 0, attempts)
}
