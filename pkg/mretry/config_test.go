package mretry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigs(t *testing.T) {
	outbox := DefaultMetadataOutboxConfig()
	assert.Equal(t, DefaultMaxRetries, outbox.MaxRetries)
	assert.Equal(t, DefaultInitialBackoff, outbox.InitialBackoff)
	assert.Equal(t, DefaultMaxBackoff, outbox.MaxBackoff)
	assert.Equal(t, DefaultJitterFactor, outbox.JitterFactor)

	dlq := DefaultDLQConfig()
	assert.Equal(t, DefaultMaxRetries, dlq.MaxRetries)
	assert.Equal(t, DLQInitialBackoff, dlq.InitialBackoff)
	assert.Equal(t, DefaultMaxBackoff, dlq.MaxBackoff)
	assert.Equal(t, DefaultJitterFactor, dlq.JitterFactor)

	assert.Equal(t, 5, DefaultMaxRetries)
	assert.Equal(t, 1*time.Second, DefaultInitialBackoff)
	assert.Equal(t, 5*time.Minute, DefaultMaxBackoff)
	assert.Equal(t, 0.25, DefaultJitterFactor)
	assert.Equal(t, 1*time.Minute, DLQInitialBackoff)
}

func TestConfigChaining(t *testing.T) {
	cfg := DefaultMetadataOutboxConfig().
		WithMaxRetries(5).
		WithInitialBackoff(2 * time.Second).
		WithMaxBackoff(1 * time.Hour).
		WithJitterFactor(0.5)

	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.InitialBackoff)
	assert.Equal(t, 1*time.Hour, cfg.MaxBackoff)
	assert.Equal(t, 0.5, cfg.JitterFactor)

	// The chain must not mutate the package-level default.
	assert.Equal(t, DefaultInitialBackoff, DefaultMetadataOutboxConfig().InitialBackoff)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultMetadataOutboxConfig().Validate())
	assert.NoError(t, DefaultDLQConfig().Validate())

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"zero retries", DefaultMetadataOutboxConfig().WithMaxRetries(0), "MaxRetries"},
		{"negative retries", DefaultMetadataOutboxConfig().WithMaxRetries(-1), "MaxRetries"},
		{"zero initial backoff", DefaultMetadataOutboxConfig().WithInitialBackoff(0), "InitialBackoff"},
		{"negative initial backoff", DefaultMetadataOutboxConfig().WithInitialBackoff(-time.Second), "InitialBackoff"},
		{"zero max backoff", DefaultMetadataOutboxConfig().WithMaxBackoff(0), "MaxBackoff"},
		{
			"max less than initial",
			Config{MaxRetries: 10, InitialBackoff: 10 * time.Second, MaxBackoff: 5 * time.Second, JitterFactor: 0.25},
			"must be >= InitialBackoff",
		},
		{"negative jitter", DefaultMetadataOutboxConfig().WithJitterFactor(-0.1), "JitterFactor"},
		{"jitter over one", DefaultMetadataOutboxConfig().WithJitterFactor(1.1), "JitterFactor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	// Boundary jitter values (0.0 and 1.0) are both valid.
	edge := Config{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, JitterFactor: 0.0}
	assert.NoError(t, edge.Validate())
	edge.JitterFactor = 1.0
	assert.NoError(t, edge.Validate())
}

func TestConfigValidationError_Error(t *testing.T) {
	err := ConfigValidationError{Field: "TestField", Message: "test message"}
	assert.Equal(t, "mretry: invalid TestField: test message", err.Error())
}

func TestCalculateBackoff_FirstAttemptIsInitialBackoff(t *testing.T) {
	cfg := DefaultMetadataOutboxConfig().WithJitterFactor(0)

	assert.Equal(t, cfg.InitialBackoff, cfg.CalculateBackoff(0))
}

func TestCalculateBackoff_GrowsExponentially(t *testing.T) {
	cfg := DefaultMetadataOutboxConfig().WithJitterFactor(0)

	assert.Equal(t, 2*cfg.InitialBackoff, cfg.CalculateBackoff(1))
	assert.Equal(t, 4*cfg.InitialBackoff, cfg.CalculateBackoff(2))
	assert.Equal(t, 8*cfg.InitialBackoff, cfg.CalculateBackoff(3))
}

func TestCalculateBackoff_CapsAtMaxBackoff(t *testing.T) {
	cfg := DefaultMetadataOutboxConfig().WithJitterFactor(0)

	assert.Equal(t, cfg.MaxBackoff, cfg.CalculateBackoff(20))
}

func TestCalculateBackoff_JitterStaysWithinBounds(t *testing.T) {
	cfg := DefaultMetadataOutboxConfig()

	for attempt := 0; attempt < 5; attempt++ {
		unjittered := DefaultMetadataOutboxConfig().WithJitterFactor(0).CalculateBackoff(attempt)
		lower := time.Duration(float64(unjittered) * (1 - cfg.JitterFactor))
		upper := time.Duration(float64(unjittered) * (1 + cfg.JitterFactor))

		for i := 0; i < 20; i++ {
			got := cfg.CalculateBackoff(attempt)
			assert.GreaterOrEqual(t, got, lower)
			assert.LessOrEqual(t, got, upper)
		}
	}
}

func TestCalculateBackoff_NegativeAttemptTreatedAsZero(t *testing.T) {
	cfg := DefaultMetadataOutboxConfig().WithJitterFactor(0)

	assert.Equal(t, cfg.CalculateBackoff(0), cfg.CalculateBackoff(-3))
}
