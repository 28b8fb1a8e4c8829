package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	e, err := NewEntry("E-1", "", "ALERT_ESCALATED", "alert", "A-1", nil, now)
	require.NoError(t, err)
	assert.Equal(t, "system", e.Actor)
	assert.NotNil(t, e.Details)
	assert.Equal(t, now, e.CreatedAt)

	_, err = NewEntry("E-2", "mlro", "", "alert", "A-1", nil, now)
	assert.ErrorIs(t, err, ErrInvalidEntry)
	_, err = NewEntry("E-3", "mlro", "CLOSED", "case", "", nil, now)
	assert.ErrorIs(t, err, ErrInvalidEntry)
}
