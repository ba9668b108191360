// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_NewHead(t *testing.T) {
	h := &Health{}
	h.NewHead(42)
	h.Running(true)

	status, err := h.Status(time.Minute)
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.True(t, status.Running)
	require.NotNil(t, status.BlockIngestion.Number)
	assert.Equal(t, uint64(42), *status.BlockIngestion.Number)
	require.NotNil(t, status.BlockIngestion.Timestamp)
	assert.WithinDuration(t, time.Now(), *status.BlockIngestion.Timestamp, time.Second)
}

func TestHealth_Unhealthy(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *Health)
		maxTime time.Duration
	}{
		{"no block yet", func(h *Health) { h.Running(true) }, time.Minute},
		{"stopped", func(h *Health) { h.NewHead(1) }, time.Minute},
		{"stalled", func(h *Health) {
			h.NewHead(1)
			h.Running(true)
			h.newHead = time.Now().Add(-time.Hour)
		}, time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Health{}
			tt.setup(h)
			status, err := h.Status(tt.maxTime)
			require.NoError(t, err)
			assert.False(t, status.Healthy)
		})
	}
}
