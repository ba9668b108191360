// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/DMDcoin/diamond-contracts-core-sub000/log"
)

func TestRequestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		enabled   bool
		threshold time.Duration
		delay     time.Duration
		status    int
		shouldLog bool
	}{
		{"enabled", true, 0, 0, http.StatusOK, true},
		{"disabled", false, 0, 0, http.StatusOK, false},
		{"disabled fast", false, time.Second, 0, http.StatusOK, false},
		{"disabled slow", false, time.Millisecond, 10 * time.Millisecond, http.StatusOK, true},
		{"enabled error", true, 0, 0, http.StatusNotFound, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := log.NewLogger(log.JSONHandler(&buf))

			var enabled atomic.Bool
			enabled.Store(tt.enabled)

			handler := RequestLoggerMiddleware(logger, &enabled, tt.threshold)(
				http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					time.Sleep(tt.delay)
					w.WriteHeader(tt.status)
				}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/epoch", nil))

			assert.Equal(t, tt.status, rec.Code)
			if tt.shouldLog {
				assert.Contains(t, buf.String(), `"uri":"/epoch"`)
				assert.Contains(t, buf.String(), `"status":`)
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}
