// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContextFollowsRoot(t *testing.T) {
	prev := Root()
	defer SetDefault(prev)

	logger := WithContext("pkg", "staking")

	var buf bytes.Buffer
	SetDefault(NewLogger(JSONHandler(&buf)))

	logger.Info("pool added", "pool", "0x01", "amount", 100)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "pool added", rec["msg"])
	assert.Equal(t, "staking", rec["pkg"])
	assert.Equal(t, "0x01", rec["pool"])
	assert.Equal(t, float64(100), rec["amount"])
}

func TestDiscard(t *testing.T) {
	prev := Root()
	defer SetDefault(prev)

	SetDefault(NewLogger(DiscardHandler()))
	logger := WithContext("pkg", "keygen")
	assert.False(t, logger.Enabled(t.Context(), LevelInfo))
	logger.Info("dropped")
}

func TestLevelFromVerbosity(t *testing.T) {
	assert.Equal(t, LevelCrit, LevelFromVerbosity(0))
	assert.Equal(t, LevelInfo, LevelFromVerbosity(3))
	assert.Equal(t, LevelTrace, LevelFromVerbosity(5))
}

func TestJSONHandlerWithLevel(t *testing.T) {
	var (
		buf   bytes.Buffer
		level slog.LevelVar
	)
	level.Set(LevelWarn)
	logger := NewLogger(JSONHandlerWithLevel(&buf, &level))

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	level.Set(LevelDebug)
	logger.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestJSONHandlerLevelFollowsVar(t *testing.T) {
	prev := Root()
	defer SetDefault(prev)

	var (
		buf   bytes.Buffer
		level slog.LevelVar
	)
	level.Set(LevelInfo)
	SetDefault(NewLogger(JSONHandlerWithLevel(&buf, &level)))
	logger := WithContext("pkg", "node")

	logger.Debug("before")
	assert.Empty(t, buf.String())

	level.Set(LevelDebug)
	logger.Debug("after", "amount", big.NewInt(7))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "after", rec["msg"])
	assert.Equal(t, "debug", rec["lvl"])
	assert.Equal(t, "7", rec["amount"])
	assert.Contains(t, rec, "t")
}

func TestTerminalHandlerWithLevel(t *testing.T) {
	var (
		buf   bytes.Buffer
		level slog.LevelVar
	)
	level.Set(LevelWarn)
	logger := NewLogger(NewTerminalHandlerWithLevel(&buf, &level, false)).With("pkg", "api")

	logger.Info("quiet")
	assert.Empty(t, buf.String())
	assert.False(t, logger.Enabled(t.Context(), LevelInfo))

	level.Set(LevelTrace)
	assert.True(t, logger.Enabled(t.Context(), LevelTrace))
	logger.Info("loud")
	assert.Contains(t, buf.String(), "loud")
	assert.Contains(t, buf.String(), "pkg=api")
	assert.NotContains(t, buf.String(), "quiet")
}
