// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package co_test

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DMDcoin/diamond-contracts-core-sub000/co"
)

func TestSignalBeforeWait(t *testing.T) {
	var sig co.Signal
	sig.Signal()

	assert.True(t, <-sig.NewWaiter().C())
}

func TestSignalAfterWait(t *testing.T) {
	var sig co.Signal
	w := sig.NewWaiter()
	sig.Signal()
	assert.True(t, <-w.C())
}

func TestBroadcastBeforeWait(t *testing.T) {
	var sig co.Signal
	sig.Broadcast()

	var ws []co.Waiter
	for range 10 {
		ws = append(ws, sig.NewWaiter())
	}

	pending := 0
	for _, w := range ws {
		select {
		case <-w.C():
		default:
			pending++
		}
	}
	assert.Equal(t, 10, pending, "waiters created later miss the broadcast")
}

func TestBroadcastAfterWait(t *testing.T) {
	var sig co.Signal

	var ws []co.Waiter
	for range 10 {
		ws = append(ws, sig.NewWaiter())
	}
	sig.Broadcast()

	for _, w := range ws {
		_, ok := <-w.C()
		assert.False(t, ok)
	}
}

func TestWaiterFollowsBroadcasts(t *testing.T) {
	var sig co.Signal
	w := sig.NewWaiter()

	sig.Broadcast()
	<-w.C()

	select {
	case <-w.C():
		t.Fatal("second receive without broadcast")
	default:
	}
	sig.Broadcast()
	<-w.C()
}

func TestGoes(t *testing.T) {
	var (
		goes co.Goes
		n    atomic.Int32
	)
	for range 8 {
		goes.Go(func() { n.Add(1) })
	}
	goes.Wait()
	assert.Equal(t, int32(8), n.Load())
}
