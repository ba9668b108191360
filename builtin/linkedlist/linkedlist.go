// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package linkedlist

import (
	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin/solidity"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

// ErrEmpty is returned when popping from an empty list.
var ErrEmpty = errors.New("list is empty")

// LinkedList is an insertion ordered set of addresses kept in contract storage.
type LinkedList struct {
	head  *solidity.Address
	tail  *solidity.Address
	count *solidity.Uint64
	next  *solidity.Mapping[hbbft.Address, hbbft.Address]
	prev  *solidity.Mapping[hbbft.Address, hbbft.Address]
}

// New creates a list whose storage slots are derived from name.
func New(sctx *solidity.Context, name string) *LinkedList {
	return &LinkedList{
		head:  solidity.NewAddress(sctx, solidity.Slot(name+"-head")),
		tail:  solidity.NewAddress(sctx, solidity.Slot(name+"-tail")),
		count: solidity.NewUint64(sctx, solidity.Slot(name+"-count")),
		next:  solidity.NewMapping[hbbft.Address, hbbft.Address](sctx, solidity.Slot(name+"-next")),
		prev:  solidity.NewMapping[hbbft.Address, hbbft.Address](sctx, solidity.Slot(name+"-prev")),
	}
}

// Contains reports whether address is in the list.
func (l *LinkedList) Contains(address hbbft.Address) (bool, error) {
	if address.IsZero() {
		return false, nil
	}
	prev, err := l.prev.Get(address)
	if err != nil {
		return false, err
	}
	if !prev.IsZero() {
		return true, nil
	}
	head, err := l.head.Get()
	if err != nil {
		return false, err
	}
	return head == address, nil
}

// Add appends an address to the end of the list. Adding a member again is a no-op.
// It reports whether the address was inserted.
func (l *LinkedList) Add(address hbbft.Address) (bool, error) {
	if address.IsZero() {
		return false, errors.New("zero address in list")
	}
	if ok, err := l.Contains(address); err != nil || ok {
		return false, err
	}

	oldTail, err := l.tail.Get()
	if err != nil {
		return false, err
	}

	if oldTail.IsZero() {
		l.head.Set(address)
	} else {
		if err := l.next.Set(oldTail, address); err != nil {
			return false, err
		}
		if err := l.prev.Set(address, oldTail); err != nil {
			return false, err
		}
	}
	l.tail.Set(address)

	if _, err := l.count.Add(1); err != nil {
		return false, err
	}
	return true, nil
}

// Remove extracts an address from anywhere in the list, reconnecting adjacent nodes.
// It reports whether the address was a member.
func (l *LinkedList) Remove(address hbbft.Address) (bool, error) {
	if ok, err := l.Contains(address); err != nil || !ok {
		return false, err
	}

	prev, err := l.prev.Get(address)
	if err != nil {
		return false, err
	}
	next, err := l.next.Get(address)
	if err != nil {
		return false, err
	}

	if prev.IsZero() {
		l.head.Set(next)
	} else if err := l.next.Set(prev, next); err != nil {
		return false, err
	}

	if next.IsZero() {
		l.tail.Set(prev)
	} else if err := l.prev.Set(next, prev); err != nil {
		return false, err
	}

	l.next.Delete(address)
	l.prev.Delete(address)

	count, err := l.count.Get()
	if err != nil {
		return false, err
	}
	l.count.Set(count - 1)
	return true, nil
}

// Pop removes and returns the oldest entry.
func (l *LinkedList) Pop() (hbbft.Address, error) {
	head, err := l.head.Get()
	if err != nil {
		return hbbft.Address{}, err
	}
	if head.IsZero() {
		return hbbft.Address{}, ErrEmpty
	}
	if _, err := l.Remove(head); err != nil {
		return hbbft.Address{}, err
	}
	return head, nil
}

// Head returns the oldest address, or zero address if empty.
func (l *LinkedList) Head() (hbbft.Address, error) {
	return l.head.Get()
}

// Next returns the successor address in the list, or zero address if at the end.
func (l *LinkedList) Next(address hbbft.Address) (hbbft.Address, error) {
	return l.next.Get(address)
}

// Len returns the number of addresses in the list.
func (l *LinkedList) Len() (uint64, error) {
	return l.count.Get()
}

// Iter traverses the list in insertion order until completion or error.
// The callback must not modify the list.
func (l *LinkedList) Iter(callback func(hbbft.Address) error) error {
	ptr, err := l.head.Get()
	if err != nil {
		return err
	}
	for !ptr.IsZero() {
		if err := callback(ptr); err != nil {
			return err
		}
		if ptr, err = l.next.Get(ptr); err != nil {
			return err
		}
	}
	return nil
}

// Values returns all members in insertion order.
func (l *LinkedList) Values() ([]hbbft.Address, error) {
	var values []hbbft.Address
	err := l.Iter(func(address hbbft.Address) error {
		values = append(values, address)
		return nil
	})
	return values, err
}

// Clear removes every member.
func (l *LinkedList) Clear() error {
	for {
		if _, err := l.Pop(); err != nil {
			if errors.Is(err, ErrEmpty) {
				return nil
			}
			return err
		}
	}
}
