package mesh

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProbeSucceedsImmediately(t *testing.T) {
	calls := 0
	err := Probe(func() (bool, error) {
		calls++
		return true, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestProbeExhaustsAttempts(t *testing.T) {
	orig := RetryDelay
	RetryDelay = time.Millisecond
	defer func() { RetryDelay = orig }()

	calls := 0
	err := Probe(func() (bool, error) {
		calls++
		return false, nil
	})
	assert.ErrorIs(t, err, ErrNotMeshed)
	assert.Equal(t, MaxAttempts, calls)
}

func TestProbeToleratesFlagErrors(t *testing.T) {
	orig := RetryDelay
	RetryDelay = time.Millisecond
	defer func() { RetryDelay = orig }()

	calls := 0
	err := Probe(func() (bool, error) {
		calls++
		if calls < MaxAttempts {
			return false, errors.New("transient read failure")
		}
		return true, nil
	})
	assert.NoError(t, err)
}
