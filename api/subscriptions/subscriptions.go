// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/DMDcoin/diamond-contracts-core-sub000/api/utils"
	"github.com/DMDcoin/diamond-contracts-core-sub000/builtin"
	"github.com/DMDcoin/diamond-contracts-core-sub000/chain"
	"github.com/DMDcoin/diamond-contracts-core-sub000/co"
	"github.com/DMDcoin/diamond-contracts-core-sub000/log"
	"github.com/DMDcoin/diamond-contracts-core-sub000/metrics"
)

var (
	logger = log.WithContext("pkg", "subscriptions")

	metricActiveWebsocketGauge = metrics.LazyLoadGaugeVec("api_active_websocket_count", []string{"subject"})
)

const (
	// time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// send pings to peer with this period, must be less than pongWait
	pingPeriod = (pongWait * 7) / 10
)

// Network is what subscriptions follow.
type Network interface {
	utils.Viewer
	Head() chain.Header
	NewHeadWaiter() co.Waiter
}

type Subscriptions struct {
	nw       Network
	upgrader *websocket.Upgrader
	done     chan struct{}
	wg       sync.WaitGroup
}

func New(nw Network, allowedOrigins []string) *Subscriptions {
	return &Subscriptions{
		nw: nw,
		upgrader: &websocket.Upgrader{
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == origin || allowed == "*" {
						return true
					}
				}
				return false
			},
		},
		done: make(chan struct{}),
	}
}

func (s *Subscriptions) beat() (*BeatMessage, error) {
	var msg *BeatMessage
	err := s.nw.View(func(c *builtin.Contracts) (err error) {
		msg, err = convertBeat(s.nw.Head(), c)
		return
	})
	return msg, err
}

func (s *Subscriptions) handleSubscribeBeat(w http.ResponseWriter, req *http.Request) error {
	// Upgrade replies to the client itself on failure.
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.Debug("upgrade to websocket", "err", err)
		return nil
	}
	s.wg.Add(1)
	defer s.wg.Done()

	labels := map[string]string{"subject": "beat"}
	metricActiveWebsocketGauge().AddWithLabel(1, labels)
	defer metricActiveWebsocketGauge().AddWithLabel(-1, labels)

	err = s.pipe(conn)
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err != nil {
		logger.Debug("subscription closed", "err", err)
		closeMsg = websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error())
	}
	conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
	conn.Close()
	return nil
}

// pipe sends the current head, then one beat per new head until the peer goes away
// or the subscriptions are closed.
func (s *Subscriptions) pipe(conn *websocket.Conn) error {
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	waiter := s.nw.NewHeadWaiter()
	var last *BeatMessage
	send := func() error {
		msg, err := s.beat()
		if err != nil {
			return err
		}
		if last != nil && last.Number == msg.Number {
			return nil
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			return err
		}
		last = msg
		return nil
	}

	if err := send(); err != nil {
		return err
	}
	for {
		select {
		case <-s.done:
			return nil
		case <-closed:
			return nil
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		case <-waiter.C():
			if err := send(); err != nil {
				return err
			}
		}
	}
}

// Close ends all subscriptions. Hijacked connections outlive the http server.
func (s *Subscriptions) Close() {
	close(s.done)
	s.wg.Wait()
}

func (s *Subscriptions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/beat").
		Methods(http.MethodGet).
		Name("WS /subscriptions/beat").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSubscribeBeat))
}
