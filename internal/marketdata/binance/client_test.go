package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candle-featuresv1/internal/marketdata"
)

const klinesBody = `[
 [1700000000000,"10.0","12.0","9.5","11.0","100.0",1700000059999,"0",1,"0","0","0"],
 [1700000060000,"11.0","13.0","10.5","12.5","200.0",1700000119999,"0",1,"0","0","0"],
 [1700000120000,"12.5","12.5","11.0","11.5","50.0",1700000179999,"0",1,"0","0","0"]
]`

func newTestServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/klines":
			if r.URL.Query().Get("symbol") != "BTCUSDT" || r.URL.Query().Get("interval") != "1m" ||
				r.URL.Query().Get("limit") != "3" {
				http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(klinesBody))
		case "/ticker/price":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"symbol":"` + r.URL.Query().Get("symbol") + `","price":"43125.50000000"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_FetchCandles(t *testing.T) {
	var hits int32
	c := NewClient(newTestServer(t, &hits).URL, 5*time.Second)

	s, err := c.FetchCandles(context.Background(), "btc", 3, "1m")
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())

	first, _ := s.At(0)
	assert.Equal(t, int64(1700000000000), first.Timestamp)
	assert.Equal(t, 10.0, first.Open)
	assert.Equal(t, 12.0, first.High)
	assert.Equal(t, 9.5, first.Low)
	assert.Equal(t, 11.0, first.Close)
	assert.Equal(t, 100.0, first.Volume)

	closes, err := c.FetchClosePrices(context.Background(), "BTC", 3, "1m")
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 12.5, 11.5}, closes)

	pv, err := c.FetchPriceVolume(context.Background(), "BTC", 3, "1m")
	require.NoError(t, err)
	require.Len(t, pv, 3)
	assert.Equal(t, 12.5, pv[1].Price)
	assert.Equal(t, 200.0, pv[1].Volume)
}

func TestClient_MissingIntervalMakesNoRequest(t *testing.T) {
	var hits int32
	c := NewClient(newTestServer(t, &hits).URL, 5*time.Second)

	_, err := c.FetchCandles(context.Background(), "BTC", 3, "")
	assert.ErrorIs(t, err, marketdata.ErrMissingInterval)
	_, err = c.FetchClosePrices(context.Background(), "BTC", 3, "")
	assert.ErrorIs(t, err, marketdata.ErrMissingInterval)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestClient_UpstreamError(t *testing.T) {
	var hits int32
	c := NewClient(newTestServer(t, &hits).URL, 5*time.Second)

	_, err := c.FetchCandles(context.Background(), "DOGE", 3, "1m")
	require.Error(t, err)
	assert.ErrorIs(t, err, marketdata.ErrUpstream)
	assert.Contains(t, err.Error(), "400")
}

func TestClient_FetchLatestPrice(t *testing.T) {
	var hits int32
	c := NewClient(newTestServer(t, &hits).URL, 5*time.Second)

	for _, in := range []string{"eth", "ETHUSDT"} {
		info, err := c.FetchLatestPrice(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, "Binance", info.Exchange)
		assert.Equal(t, "ETH", info.Symbol)
		assert.Equal(t, "USD", info.Currency)
		assert.Equal(t, 43125.5, info.Price)
	}
}

func TestSymbols(t *testing.T) {
	assert.Equal(t, "BTCUSDT", klineSymbol("btc"))
	assert.Equal(t, "BTCUSDT", tickerSymbol("btcusdt"))
	assert.Equal(t, "SOLUSDT", tickerSymbol("Sol"))
}

func TestDecodeKline_RejectsBadRows(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`[[1,"10","9","11","10","1"]]`)) // high < low
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).FetchCandles(context.Background(), "BTC", 1, "1m")
	assert.ErrorIs(t, err, marketdata.ErrUpstream)
}
