// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/kv"
	"github.com/DMDcoin/diamond-contracts-core-sub000/log"
	"github.com/DMDcoin/diamond-contracts-core-sub000/xenv"
)

const (
	headerStoreName = "chain.h"
	propStoreName   = "chain.p"

	hashCacheSize = 512
)

var (
	logger  = log.WithContext("pkg", "chain")
	headKey = []byte("head")

	_ xenv.Chain = (*Chain)(nil)
)

// Header is the persisted part of a block.
type Header struct {
	ParentHash hbbft.Bytes32
	Number     uint64
	Time       uint64
	Author     hbbft.Address
}

// Hash returns the header hash.
func (h *Header) Hash() hbbft.Bytes32 {
	data, _ := rlp.EncodeToBytes(h)
	return hbbft.Blake2b(data)
}

// Chain stores block headers and tracks the block being executed.
// A proposed block is only kept in memory until it is staged into a bulk and marked committed.
type Chain struct {
	db        kv.Store
	headers   kv.Store
	props     kv.Store
	cache     *lru.Cache
	head      Header
	committed Header
}

// New opens the chain kept in store, writing the genesis header if the store is empty.
func New(store kv.Store, genesis Header) (*Chain, error) {
	cache, err := lru.New(hashCacheSize)
	if err != nil {
		return nil, err
	}
	c := &Chain{
		db:      store,
		headers: kv.Bucket(headerStoreName).NewStore(store),
		props:   kv.Bucket(propStoreName).NewStore(store),
		cache:   cache,
	}

	headNum, err := kv.GetOrNil(c.props, headKey)
	if err != nil {
		return nil, errors.Wrap(err, "load head")
	}
	if headNum == nil {
		genesis.Number = 0
		if err := c.write(&genesis); err != nil {
			return nil, errors.Wrap(err, "write genesis")
		}
		c.head, c.committed = genesis, genesis
		return c, nil
	}

	head, err := c.header(binary.BigEndian.Uint64(headNum))
	if err != nil {
		return nil, errors.Wrap(err, "load head header")
	}
	c.head, c.committed = *head, *head
	return c, nil
}

func numberKey(n uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], n)
	return k[:]
}

func (c *Chain) write(h *Header) error {
	bulk := c.db.Bulk()
	if err := stage(bulk, h); err != nil {
		return err
	}
	if err := bulk.Write(); err != nil {
		return err
	}
	c.cache.Add(h.Number, h.Hash())
	return nil
}

func stage(p kv.Putter, h *Header) error {
	headers := kv.Bucket(headerStoreName).NewPutter(p)
	props := kv.Bucket(propStoreName).NewPutter(p)

	data, err := rlp.EncodeToBytes(h)
	if err != nil {
		return err
	}
	if err := headers.Put(numberKey(h.Number), data); err != nil {
		return err
	}
	return props.Put(headKey, numberKey(h.Number))
}

func (c *Chain) header(n uint64) (*Header, error) {
	data, err := c.headers.Get(numberKey(n))
	if err != nil {
		return nil, err
	}
	var h Header
	if err := rlp.DecodeBytes(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Current returns the block being executed.
func (c *Chain) Current() xenv.BlockContext {
	return xenv.BlockContext{
		Number: c.head.Number,
		Time:   c.head.Time,
		Author: c.head.Author,
	}
}

// Head returns the latest header.
func (c *Chain) Head() Header {
	return c.head
}

// BlockHash returns the hash of block number, if it is not newer than the head.
func (c *Chain) BlockHash(number uint64) (hbbft.Bytes32, bool, error) {
	if number > c.head.Number {
		return hbbft.Bytes32{}, false, nil
	}
	if number == c.head.Number {
		return c.head.Hash(), true, nil
	}
	if cached, ok := c.cache.Get(number); ok {
		return cached.(hbbft.Bytes32), true, nil
	}
	h, err := c.header(number)
	if err != nil {
		if c.headers.IsNotFound(err) {
			return hbbft.Bytes32{}, false, nil
		}
		return hbbft.Bytes32{}, false, err
	}
	hash := h.Hash()
	c.cache.Add(number, hash)
	return hash, true, nil
}

// Propose makes a child of the head the new block being executed. Nothing is written
// until Stage and MarkCommitted, Rollback drops it.
func (c *Chain) Propose(time uint64, author hbbft.Address) (xenv.BlockContext, error) {
	if c.head != c.committed {
		return xenv.BlockContext{}, errors.Errorf("block %d is not committed", c.head.Number)
	}
	if time < c.head.Time {
		return xenv.BlockContext{}, errors.Errorf("block time %d before parent time %d", time, c.head.Time)
	}
	c.head = Header{
		ParentHash: c.head.Hash(),
		Number:     c.head.Number + 1,
		Time:       time,
		Author:     author,
	}
	return c.Current(), nil
}

// Stage puts the proposed header and head pointer into p, which must write to the
// store the chain was opened on.
func (c *Chain) Stage(p kv.Putter) error {
	return errors.Wrap(stage(p, &c.head), "stage header")
}

// MarkCommitted records that the staged head was written.
func (c *Chain) MarkCommitted() {
	c.committed = c.head
	c.cache.Add(c.head.Number, c.head.Hash())
	logger.Trace("block appended", "number", c.head.Number, "time", c.head.Time, "author", c.head.Author)
}

// Rollback drops a proposed block that was not committed.
func (c *Chain) Rollback() {
	c.head = c.committed
}

// Append proposes a block and writes it at once.
func (c *Chain) Append(time uint64, author hbbft.Address) (xenv.BlockContext, error) {
	blk, err := c.Propose(time, author)
	if err != nil {
		return xenv.BlockContext{}, err
	}
	if err := c.write(&c.head); err != nil {
		c.Rollback()
		return xenv.BlockContext{}, errors.Wrap(err, "append header")
	}
	c.MarkCommitted()
	return blk, nil
}
