// Copyright (c) 2025 The DMD Diamond developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DMDcoin/diamond-contracts-core-sub000/api/node"
	"github.com/DMDcoin/diamond-contracts-core-sub000/api/subscriptions"
	"github.com/DMDcoin/diamond-contracts-core-sub000/api/validators"
	"github.com/DMDcoin/diamond-contracts-core-sub000/genesis"
	"github.com/DMDcoin/diamond-contracts-core-sub000/hbbft"
	"github.com/DMDcoin/diamond-contracts-core-sub000/lvldb"
	"github.com/DMDcoin/diamond-contracts-core-sub000/metrics"
	simnode "github.com/DMDcoin/diamond-contracts-core-sub000/node"
)

func init() {
	metrics.InitializePrometheusMetrics()
}

func newNetwork(t *testing.T) *simnode.Node {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	gene, err := genesis.NewDevnet(2)
	require.NoError(t, err)
	n, err := simnode.New(db, gene, simnode.Options{})
	require.NoError(t, err)
	return n
}

func httpGet(t *testing.T, url string) ([]byte, int) {
	res, err := http.Get(url) //#nosec G107
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return body, res.StatusCode
}

func scrape(t *testing.T, url string) map[string]*dto.MetricFamily {
	body, code := httpGet(t, url+"/metrics")
	require.Equal(t, http.StatusOK, code)
	parser := expfmt.TextParser{}
	families, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	require.NoError(t, err)
	return families
}

// find returns the metric of family name whose labels include want.
func find(families map[string]*dto.MetricFamily, name string, want map[string]string) *dto.Metric {
	for _, m := range families[name].GetMetric() {
		matched := 0
		for _, l := range m.GetLabel() {
			if v, ok := want[l.GetName()]; ok && v == l.GetValue() {
				matched++
			}
		}
		if matched == len(want) {
			return m
		}
	}
	return nil
}

func requestCount(families map[string]*dto.MetricFamily, name, code string) float64 {
	m := find(families, "hbbft_api_request_count", map[string]string{"name": name, "code": code, "method": "GET"})
	return m.GetCounter().GetValue()
}

func TestMetricsMiddleware(t *testing.T) {
	n := newNetwork(t)

	router := mux.NewRouter()
	node.New(n).Mount(router, "/node")
	validators.New(n).Mount(router, "/validators")
	router.PathPrefix("/metrics").Handler(metrics.HTTPHandler())
	router.Use(metricsMiddleware)
	ts := httptest.NewServer(router)
	defer ts.Close()

	before := scrape(t, ts.URL)

	_, code := httpGet(t, ts.URL+"/node/info")
	assert.Equal(t, http.StatusOK, code)
	_, code = httpGet(t, ts.URL+"/validators/0x1234")
	assert.Equal(t, http.StatusBadRequest, code)
	_, code = httpGet(t, ts.URL+"/validators/"+hbbft.BytesToAddress([]byte("nobody")).String())
	assert.Equal(t, http.StatusNotFound, code)
	_, code = httpGet(t, ts.URL+"/nowhere")
	assert.Equal(t, http.StatusNotFound, code)

	after := scrape(t, ts.URL)

	for _, tt := range []struct {
		name string
		code string
	}{
		{"GET /node/info", "200"},
		{"GET /validators/{address}", "400"},
		{"GET /validators/{address}", "404"},
	} {
		assert.Equal(t, float64(1), requestCount(after, tt.name, tt.code)-requestCount(before, tt.name, tt.code), tt.name+" "+tt.code)
	}
	for _, m := range after["hbbft_api_request_count"].GetMetric() {
		for _, l := range m.GetLabel() {
			assert.NotContains(t, l.GetValue(), "nowhere", "unrouted requests are not recorded")
		}
	}
}

func TestWebsocketMetrics(t *testing.T) {
	n := newNetwork(t)

	router := mux.NewRouter()
	subs := subscriptions.New(n, []string{"*"})
	subs.Mount(router, "/subscriptions")
	router.PathPrefix("/metrics").Handler(metrics.HTTPHandler())
	router.Use(metricsMiddleware)
	ts := httptest.NewServer(router)
	defer func() {
		subs.Close()
		ts.Close()
	}()

	active := func() float64 {
		m := find(scrape(t, ts.URL), "hbbft_api_active_websocket_count", map[string]string{"subject": "beat"})
		return m.GetGauge().GetValue()
	}
	base := active()

	u := url.URL{Scheme: "ws", Host: strings.TrimPrefix(ts.URL, "http://"), Path: "/subscriptions/beat"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	// the first beat is written once the subscription is counted
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, base+1, active())

	conn.Close()
	assert.Eventually(t, func() bool { return active() == base }, 5*time.Second, 10*time.Millisecond)
}
