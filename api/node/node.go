// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/DMDcoin/diamond-contracts-core-sub000/api/utils"
	"github.com/DMDcoin/diamond-contracts-core-sub000/chain"
	"github.com/DMDcoin/diamond-contracts-core-sub000/genesis"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
)

// Network is the simulated network served by the API.
type Network interface {
	Head() chain.Header
	Genesis() *genesis.Genesis
}

type JSONHead struct {
	Number     uint64        `json:"number"`
	Time       uint64        `json:"time"`
	Author     hbbft.Address `json:"author"`
	Hash       hbbft.Bytes32 `json:"hash"`
	ParentHash hbbft.Bytes32 `json:"parentHash"`
}

type JSONInfo struct {
	Name       string        `json:"name"`
	GenesisID  hbbft.Bytes32 `json:"genesisId"`
	LaunchTime uint64        `json:"launchTime"`
	Head       JSONHead      `json:"head"`
}

type Node struct {
	nw Network
}

func New(nw Network) *Node {
	return &Node{nw}
}

func (n *Node) handleGetInfo(w http.ResponseWriter, _ *http.Request) error {
	head := n.nw.Head()
	gene := n.nw.Genesis()
	return utils.WriteJSON(w, &JSONInfo{
		Name:       gene.Name(),
		GenesisID:  gene.ID(),
		LaunchTime: gene.LaunchTime(),
		Head: JSONHead{
			Number:     head.Number,
			Time:       head.Time,
			Author:     head.Author,
			Hash:       head.Hash(),
			ParentHash: head.ParentHash,
		},
	})
}

func (n *Node) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/info").
		Methods(http.MethodGet).
		Name("GET /node/info").
		HandlerFunc(utils.WrapHandlerFunc(n.handleGetInfo))
}
