package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRangeExplicitWindow(t *testing.T) {
	r, err := resolveRange(0, "2025-06-01", "2025-06-07", 7)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01..2025-06-07", r.String())
}

func TestResolveRangeDefaultsToConfigDays(t *testing.T) {
	r, err := resolveRange(0, "", "", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, r.DurationDays())
}

func TestResolveRangeRejectsMixedFlags(t *testing.T) {
	_, err := resolveRange(3, "2025-06-01", "2025-06-07", 7)
	assert.Error(t, err)
}

func TestResolveRangeRejectsInverted(t *testing.T) {
	_, err := resolveRange(0, "2025-06-07", "2025-06-01", 7)
	assert.Error(t, err)
}
