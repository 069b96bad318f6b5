package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvFallbackOrder(t *testing.T) {
	t.Setenv("ENVTEST_FALLBACK", "fallback-value")
	assert.Equal(t, "fallback-value", GetEnv("default", "ENVTEST_PRIMARY", "ENVTEST_FALLBACK"))

	t.Setenv("ENVTEST_PRIMARY", "primary-value")
	assert.Equal(t, "primary-value", GetEnv("default", "ENVTEST_PRIMARY", "ENVTEST_FALLBACK"))
}

func TestGetEnvDefault(t *testing.T) {
	assert.Equal(t, "default", GetEnv("default", "ENVTEST_UNSET"))
	assert.Equal(t, 42, GetEnvInt(42, "ENVTEST_UNSET"))
	assert.True(t, GetEnvBool(true, "ENVTEST_UNSET"))
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("ENVTEST_INT", "not-a-number")
	assert.Equal(t, 7, GetEnvInt(7, "ENVTEST_INT"))

	t.Setenv("ENVTEST_INT", "12")
	assert.Equal(t, 12, GetEnvInt(7, "ENVTEST_INT"))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("ENVTEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, GetEnvDuration(time.Minute, "ENVTEST_DUR"))

	// Bare integers are seconds.
	t.Setenv("ENVTEST_DUR", "600")
	assert.Equal(t, 10*time.Minute, GetEnvDuration(time.Minute, "ENVTEST_DUR"))
}

func TestGetEnvSlice(t *testing.T) {
	t.Setenv("ENVTEST_SLICE", "a, b ,c,,")
	assert.Equal(t, []string{"a", "b", "c"}, GetEnvSlice(nil, "ENVTEST_SLICE"))
}
