package models

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretRedactsOnEveryRenderedForm(t *testing.T) {
	secret := NewSecret("hunter2")

	assert.Equal(t, RedactedPlaceholder, secret.String())
	assert.Equal(t, RedactedPlaceholder, secret.GoString())
	assert.NotContains(t, fmt.Sprintf("%v", secret), "hunter2")
	assert.NotContains(t, fmt.Sprintf("%+v", secret), "hunter2")
	assert.NotContains(t, fmt.Sprintf("%#v", secret), "hunter2")

	payload, err := json.Marshal(secret)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "hunter2")
}

func TestSecretRevealIsExplicit(t *testing.T) {
	secret := NewSecret("hunter2")
	assert.Equal(t, "hunter2", secret.Reveal())
}

func TestJobStatusTerminal(t *testing.T) {
	for _, status := range []JobStatus{JobStatusSucceeded, JobStatusFailed, JobStatusSkipped, JobStatusCancelled} {
		assert.True(t, status.Terminal(), string(status))
	}

	for _, status := range []JobStatus{JobStatusPending, JobStatusBlocked, JobStatusEligible, JobStatusRunning} {
		assert.False(t, status.Terminal(), string(status))
	}
}

func TestSuccessLikeIncludesSkipped(t *testing.T) {
	assert.True(t, JobStatusSucceeded.SuccessLike())
	assert.True(t, JobStatusSkipped.SuccessLike())
	assert.False(t, JobStatusFailed.SuccessLike())
	assert.False(t, JobStatusCancelled.SuccessLike())
}

func TestStrategyDefaults(t *testing.T) {
	var strategy *Strategy

	assert.True(t, strategy.FailFastEnabled())
	assert.Zero(t, strategy.ParallelLimit())

	disabled := false
	strategy = &Strategy{FailFast: &disabled, MaxParallel: 3}
	assert.False(t, strategy.FailFastEnabled())
	assert.Equal(t, 3, strategy.ParallelLimit())
}
