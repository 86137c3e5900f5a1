package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"candle-featuresv1/internal/metrics"
	"candle-featuresv1/internal/model"
)

// DefaultStreamURL is the Binance.US combined-stream endpoint.
const DefaultStreamURL = "wss://stream.binance.us:9443/stream"

const (
	pongWait     = 30 * time.Second
	pingInterval = 15 * time.Second
	maxBackoff   = 30 * time.Second
)

type streamEnvelope struct {
	Stream string     `json:"stream"`
	Data   klineEvent `json:"data"`
}

type klineEvent struct {
	Event  string       `json:"e"`
	Symbol string       `json:"s"`
	Kline  klinePayload `json:"k"`
}

type klinePayload struct {
	OpenTime int64  `json:"t"`
	Interval string `json:"i"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
	Closed   bool   `json:"x"`
}

// Stream subscribes to kline streams for every symbol × interval and
// emits model.Kline values, forming and final.
type Stream struct {
	URL       string
	Symbols   []string
	Intervals []string

	// Optional hooks
	OnConnect func(connected bool)
	Metrics   *metrics.Metrics
}

// NewStream creates a stream for symbols (base assets) and intervals.
func NewStream(url string, symbols, intervals []string) *Stream {
	if url == "" {
		url = DefaultStreamURL
	}
	return &Stream{URL: url, Symbols: symbols, Intervals: intervals}
}

// streamURL builds "<url>?streams=btcusdt@kline_1m/...".
func (s *Stream) streamURL() string {
	names := make([]string, 0, len(s.Symbols)*len(s.Intervals))
	for _, sym := range s.Symbols {
		for _, iv := range s.Intervals {
			names = append(names, strings.ToLower(klineSymbol(sym))+"@kline_"+iv)
		}
	}
	return s.URL + "?streams=" + strings.Join(names, "/")
}

// Run connects and reconnects with exponential backoff until ctx is done.
func (s *Stream) Run(ctx context.Context, out chan<- model.Kline) error {
	if len(s.Symbols) == 0 || len(s.Intervals) == 0 {
		return fmt.Errorf("binance stream requires at least one symbol and interval")
	}
	url := s.streamURL()
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.consume(ctx, url, out)
		s.setConnected(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("binance stream disconnected, retrying", "error", err, "backoff", backoff)
		if s.Metrics != nil {
			s.Metrics.WSReconnects.Inc()
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
	}
}

func (s *Stream) setConnected(v bool) {
	if s.OnConnect != nil {
		s.OnConnect(v)
	}
}

func (s *Stream) consume(ctx context.Context, url string, out chan<- model.Kline) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	slog.Info("binance stream connected", "symbols", s.Symbols, "intervals", s.Intervals)
	s.setConnected(true)

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					slog.Warn("binance ping failed", "error", err)
					return
				}
			case <-pingCtx.Done():
				// unblock ReadMessage on shutdown
				conn.Close()
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		k, err := parseKlineMessage(message)
		if err != nil {
			slog.Warn("failed to decode binance kline", "error", err)
			continue
		}
		if k.Final && s.Metrics != nil {
			s.Metrics.StreamBars.WithLabelValues(k.Interval).Inc()
		}

		select {
		case out <- k:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// parseKlineMessage decodes one combined-stream kline event.
func parseKlineMessage(message []byte) (model.Kline, error) {
	var env streamEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return model.Kline{}, err
	}
	if env.Data.Event != "kline" {
		return model.Kline{}, fmt.Errorf("unexpected event %q on %s", env.Data.Event, env.Stream)
	}
	p := env.Data.Kline
	var vals [5]float64
	for i, raw := range [...]string{p.Open, p.High, p.Low, p.Close, p.Volume} {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.Kline{}, fmt.Errorf("%s field %d: %w", env.Stream, i, err)
		}
		vals[i] = f
	}
	bar := model.Bar{Timestamp: p.OpenTime, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}
	if err := bar.Validate(); err != nil {
		return model.Kline{}, err
	}
	return model.Kline{
		Symbol:   strings.TrimSuffix(strings.ToUpper(env.Data.Symbol), quoteAsset),
		Interval: p.Interval,
		Bar:      bar,
		Final:    p.Closed,
	}, nil
}
