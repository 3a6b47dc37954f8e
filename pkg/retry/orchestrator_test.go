package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oneiro-hq/morpheus/pkg/providers"
	"oneiro-hq/morpheus/pkg/schema"
	"oneiro-hq/morpheus/pkg/taxonomy"
)

func TestDecide_RateLimitBackoffGrowth(t *testing.T) {
	o := New()

	// Expected pre-jitter delays: 1s, 3s, 9s, 27s, 60s (capped).
	expected := []time.Duration{
		time.Second,
		3 * time.Second,
		9 * time.Second,
		27 * time.Second,
		60 * time.Second,
	}

	for attempt := 1; attempt <= 5; attempt++ {
		d := o.Decide(taxonomy.KindRateLimitExceeded, attempt, 0)
		require.Equal(t, ActionRetry, d.Action, "attempt %d", attempt)

		lo := time.Duration(float64(expected[attempt-1]) * 0.89)
		hi := time.Duration(float64(expected[attempt-1]) * 1.11)
		assert.GreaterOrEqual(t, d.Delay, lo, "attempt %d", attempt)
		assert.LessOrEqual(t, d.Delay, hi, "attempt %d", attempt)
	}

	// Sixth failure exhausts the policy.
	d := o.Decide(taxonomy.KindRateLimitExceeded, 6, 0)
	assert.Equal(t, ActionMoveToNextProvider, d.Action)
}

func TestDecide_RetryAfterOverridesBackoff(t *testing.T) {
	o := New()

	d := o.Decide(taxonomy.KindRateLimitExceeded, 1, 12*time.Second)
	require.Equal(t, ActionRetry, d.Action)
	assert.Equal(t, 12*time.Second, d.Delay)

	// But never beyond the policy cap.
	d = o.Decide(taxonomy.KindRateLimitExceeded, 1, 5*time.Minute)
	assert.Equal(t, 60*time.Second, d.Delay)
}

func TestDecide_TimeoutPolicy(t *testing.T) {
	o := New()

	d := o.Decide(taxonomy.KindTimeout, 3, 0)
	assert.Equal(t, ActionRetry, d.Action)

	d = o.Decide(taxonomy.KindTimeout, 4, 0)
	assert.Equal(t, ActionMoveToNextProvider, d.Action)
}

func TestDecide_ValidationFailedRepairs(t *testing.T) {
	o := New()

	d := o.Decide(taxonomy.KindValidationFailed, 1, 0)
	assert.Equal(t, ActionRepairAndRetry, d.Action)

	d = o.Decide(taxonomy.KindValidationFailed, 4, 0)
	assert.Equal(t, ActionMoveToNextProvider, d.Action)
}

func TestDecide_RepairKindsRetryImmediately(t *testing.T) {
	o := New()

	// The provider answered; only its output was malformed. Waiting before
	// the corrective re-dispatch buys nothing.
	kinds := []taxonomy.Kind{
		taxonomy.KindValidationFailed,
		taxonomy.KindParsingError,
		taxonomy.KindInvalidResponse,
	}
	for _, kind := range kinds {
		for attempt := 1; attempt <= 2; attempt++ {
			d := o.Decide(kind, attempt, 0)
			require.Equal(t, ActionRepairAndRetry, d.Action, "kind %s attempt %d", kind, attempt)
			assert.Zero(t, d.Delay, "kind %s attempt %d", kind, attempt)
		}
	}
}

func TestDecide_ParsingErrorMovesAfterTwo(t *testing.T) {
	o := New()

	assert.Equal(t, ActionRepairAndRetry, o.Decide(taxonomy.KindParsingError, 1, 0).Action)
	assert.Equal(t, ActionRepairAndRetry, o.Decide(taxonomy.KindParsingError, 2, 0).Action)
	assert.Equal(t, ActionMoveToNextProvider, o.Decide(taxonomy.KindParsingError, 3, 0).Action)
}

func TestDecide_ImmediateMoveKinds(t *testing.T) {
	o := New()

	kinds := []taxonomy.Kind{
		taxonomy.KindAuthentication,
		taxonomy.KindQuotaExceeded,
		taxonomy.KindCircuitBreakerOpen,
		taxonomy.KindContentFilter,
		taxonomy.KindModelUnavailable,
		taxonomy.KindTokenLimitExceeded,
	}
	for _, kind := range kinds {
		d := o.Decide(kind, 1, 0)
		assert.Equal(t, ActionMoveToNextProvider, d.Action, "kind %s", kind)
		assert.Zero(t, d.Delay, "kind %s", kind)
	}
}

func TestDecide_ConfigurationGivesUp(t *testing.T) {
	o := New()

	d := o.Decide(taxonomy.KindConfigurationError, 1, 0)
	assert.Equal(t, ActionGiveUp, d.Action)
}

func TestDecide_UnknownKindUsesFallback(t *testing.T) {
	o := New()

	assert.Equal(t, ActionRetry, o.Decide(taxonomy.Kind("mystery"), 1, 0).Action)
	assert.Equal(t, ActionMoveToNextProvider, o.Decide(taxonomy.Kind("mystery"), 2, 0).Action)
}

func TestBackoff_NeverExceedsCap(t *testing.T) {
	o := New()
	policy := PolicyFor(taxonomy.KindServerError)

	for attempt := 1; attempt <= 20; attempt++ {
		d := o.backoff(policy, attempt)
		assert.LessOrEqual(t, d, time.Duration(float64(policy.MaxDelay)*1.11))
	}
}

func TestCorrectiveMessage_NamesProblems(t *testing.T) {
	msg := CorrectiveMessage([]schema.ValidationError{
		{Field: "title", Message: "too short"},
		{Field: "scenes", Message: "must not be empty"},
	}, "The object needs id, title, description, scenes, metadata.")

	require.Equal(t, providers.RoleUser, msg.Role)
	assert.Contains(t, msg.Content, "title: too short")
	assert.Contains(t, msg.Content, "scenes: must not be empty")
	assert.Contains(t, msg.Content, "single JSON object")
}

func TestCorrectiveMessage_TruncatesLongLists(t *testing.T) {
	var errs []schema.ValidationError
	for i := 0; i < 9; i++ {
		errs = append(errs, schema.ValidationError{Field: "f", Message: "bad"})
	}

	msg := CorrectiveMessage(errs, "guide")
	assert.Contains(t, msg.Content, "and 4 more")
}

func TestTuneForRetry_TemperatureAndTokens(t *testing.T) {
	req := &providers.GenerationRequest{Temperature: 0.7, MaxTokens: 1000}

	TuneForRetry(req, 4000)
	assert.InDelta(t, 0.5, req.Temperature, 1e-9)
	assert.Equal(t, 1500, req.MaxTokens)

	TuneForRetry(req, 4000)
	TuneForRetry(req, 4000)
	assert.InDelta(t, 0.2, req.Temperature, 1e-9, "temperature floors at 0.2")

	// Token growth respects the provider ceiling.
	req.MaxTokens = 3500
	TuneForRetry(req, 4000)
	assert.Equal(t, 4000, req.MaxTokens)
}
