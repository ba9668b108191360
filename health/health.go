// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"sync"
	"time"
)

type BlockIngestion struct {
	Number    *uint64    `json:"number"`
	Timestamp *time.Time `json:"timestamp"`
}

type Status struct {
	Healthy        bool            `json:"healthy"`
	BlockIngestion *BlockIngestion `json:"blockIngestion"`
	Running        bool            `json:"running"`
}

// Health tracks whether the simulation keeps producing blocks.
type Health struct {
	lock    sync.RWMutex
	newHead time.Time
	head    *uint64
	running bool
}

func (h *Health) NewHead(number uint64) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.newHead = time.Now()
	h.head = &number
}

func (h *Health) Running(running bool) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.running = running
}

// Status reports healthy while running with a block produced within maxTimeBetweenBlocks.
func (h *Health) Status(maxTimeBetweenBlocks time.Duration) (*Status, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	ingestion := &BlockIngestion{Number: h.head}
	if h.head != nil {
		ts := h.newHead
		ingestion.Timestamp = &ts
	}

	healthy := h.running &&
		h.head != nil &&
		time.Since(h.newHead) <= maxTimeBetweenBlocks

	return &Status{
		Healthy:        healthy,
		BlockIngestion: ingestion,
		Running:        h.running,
	}, nil
}
