package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"bybit-sentinel/internal/config"
	"bybit-sentinel/internal/errors"
	"bybit-sentinel/internal/exchange"
	"bybit-sentinel/internal/metrics"
	"bybit-sentinel/internal/models"
	"bybit-sentinel/pkg/utils"
)

const (
	defaultWSURL         = "wss://stream.bybit.com/v5/public/linear"
	handshakeTimeout     = 10 * time.Second
	writeTimeout         = 10 * time.Second
	pingInterval         = 20 * time.Second
	readTimeout          = 70 * time.Second
	maxReconnectAttempts = 10
	reconnectBaseDelay   = time.Second
	reconnectMaxDelay    = 60 * time.Second
	gapRefillLimit       = 120
)

// WSClient streams public kline updates over the Bybit v5 WebSocket.
// It reconnects with exponential backoff, keeps the session alive with
// application-level pings and refills candles missed while
// disconnected through the REST provider.
type WSClient struct {
	url    string
	refill exchange.Provider
	logger zerolog.Logger

	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration

	mu         sync.Mutex
	lastClosed map[string]int64
}

var _ exchange.Streamer = (*WSClient)(nil)

// NewWSClient builds a stream adapter from the exchange configuration.
// refill, when non-nil, re-fetches candles dropped during an outage
// after each reconnect; the duplicate filter keeps delivery at most
// once per close.
func NewWSClient(cfg config.ExchangeConfig, refill exchange.Provider, logger zerolog.Logger) *WSClient {
	wsURL := cfg.WSURL
	if wsURL == "" {
		wsURL = defaultWSURL
	}
	return &WSClient{
		url:         wsURL,
		refill:      refill,
		logger:      logger.With().Str("component", "bybit_ws").Logger(),
		maxAttempts: maxReconnectAttempts,
		baseDelay:   reconnectBaseDelay,
		maxDelay:    reconnectMaxDelay,
		lastClosed:  make(map[string]int64),
	}
}

type wsCommand struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

type wsEnvelope struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Op      string          `json:"op"`
	Success *bool           `json:"success"`
	RetMsg  string          `json:"ret_msg"`
	Data    json.RawMessage `json:"data"`
}

type wsKline struct {
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
	Interval string `json:"interval"`
	Open     string `json:"open"`
	Close    string `json:"close"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Volume   string `json:"volume"`
	Confirm  bool   `json:"confirm"`
}

// Stream subscribes to the kline topics for every (symbol, timeframe)
// pair and dispatches updates until ctx is cancelled. Consecutive
// failed connections back off exponentially; once the attempt budget
// is spent the terminal error wraps ErrReconnectExceeded so the caller
// can escalate.
func (c *WSClient) Stream(ctx context.Context, symbols []string, tfs []models.Timeframe, onClosed, onForming exchange.CandleHandler) error {
	topics, err := klineTopics(symbols, tfs)
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "no kline topics to subscribe")
	}

	attempts := 0
	for {
		received, err := c.runConnection(ctx, topics, symbols, tfs, attempts > 0, onClosed, onForming)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			attempts = 0
		}
		attempts++
		if attempts > c.maxAttempts {
			return errors.Wrapf(errors.ErrReconnectExceeded, "giving up after %d attempts, last error: %v", c.maxAttempts, err)
		}

		delay := utils.CalculateBackoff(attempts-1, c.baseDelay, c.maxDelay, 2)
		c.logger.Warn().
			Err(err).
			Int("attempt", attempts).
			Dur("retry_in", delay).
			Msg("stream disconnected, reconnecting")
		metrics.IncWSReconnect()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// runConnection dials, subscribes, optionally refills the gap, then
// reads until the connection dies. It reports whether any message
// arrived so the caller can reset the attempt counter after a healthy
// session.
func (c *WSClient) runConnection(ctx context.Context, topics, symbols []string, tfs []models.Timeframe, refillGap bool, onClosed, onForming exchange.CandleHandler) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to dial %s: %w", c.url, err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	writeJSON := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(v)
	}

	if err := writeJSON(wsCommand{Op: "subscribe", Args: topics}); err != nil {
		return false, fmt.Errorf("failed to subscribe: %w", err)
	}
	c.logger.Info().Strs("topics", topics).Msg("subscribed to kline topics")

	if refillGap && c.refill != nil {
		c.refillMissed(ctx, symbols, tfs, onClosed)
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-connCtx.Done():
				return
			case <-ticker.C:
				if err := writeJSON(wsCommand{Op: "ping"}); err != nil {
					return
				}
			}
		}
	}()
	go func() {
		// Unblocks the read loop when ctx is cancelled.
		<-connCtx.Done()
		conn.Close()
	}()

	received := false
	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return received, fmt.Errorf("stream read failed: %w", err)
		}
		received = true
		c.dispatch(raw, onClosed, onForming)
	}
}

func (c *WSClient) dispatch(raw []byte, onClosed, onForming exchange.CandleHandler) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Warn().Err(err).Msg("unparseable stream message")
		return
	}

	if env.Topic == "" {
		// Command acks and pong frames.
		if env.Success != nil && !*env.Success {
			c.logger.Warn().Str("op", env.Op).Str("ret_msg", env.RetMsg).Msg("stream command rejected")
		}
		return
	}

	symbol, tf, ok := parseKlineTopic(env.Topic)
	if !ok {
		c.logger.Debug().Str("topic", env.Topic).Msg("ignoring unknown topic")
		return
	}

	var klines []wsKline
	if err := json.Unmarshal(env.Data, &klines); err != nil {
		c.logger.Warn().Err(err).Str("topic", env.Topic).Msg("unparseable kline payload")
		return
	}

	for _, k := range klines {
		candle, err := k.candle(tf)
		if err != nil {
			c.logger.Warn().Err(err).Str("topic", env.Topic).Msg("dropping malformed kline")
			continue
		}
		if candle.IsClosed {
			c.emitClosed(symbol, tf, candle, onClosed)
		} else if onForming != nil {
			onForming(symbol, tf, candle)
		}
	}
}

// emitClosed forwards a closed candle at most once per open time, even
// when the exchange replays the confirm snapshot around a reconnect or
// the gap refill overlaps already-delivered candles.
func (c *WSClient) emitClosed(symbol string, tf models.Timeframe, candle models.Candle, onClosed exchange.CandleHandler) {
	if onClosed == nil {
		return
	}
	key := symbol + "|" + tf.String()
	ms := candle.OpenTime.UnixMilli()

	c.mu.Lock()
	if last, ok := c.lastClosed[key]; ok && ms <= last {
		c.mu.Unlock()
		return
	}
	c.lastClosed[key] = ms
	c.mu.Unlock()

	onClosed(symbol, tf, candle)
}

// refillMissed re-fetches the recent candles for every pair after a
// reconnect. Failures only log: the live stream is already up again
// and the next close will land regardless.
func (c *WSClient) refillMissed(ctx context.Context, symbols []string, tfs []models.Timeframe, onClosed exchange.CandleHandler) {
	for _, symbol := range symbols {
		for _, tf := range tfs {
			candles, err := c.refill.Backfill(ctx, symbol, tf, gapRefillLimit, time.Time{}, time.Time{})
			if err != nil {
				c.logger.Warn().
					Err(err).
					Str("symbol", symbol).
					Str("timeframe", tf.String()).
					Msg("gap refill failed")
				continue
			}
			for _, candle := range candles {
				if candle.IsClosed {
					c.emitClosed(symbol, tf, candle, onClosed)
				}
			}
		}
	}
}

// klineTopics builds the subscription arguments for every pair.
func klineTopics(symbols []string, tfs []models.Timeframe) ([]string, error) {
	topics := make([]string, 0, len(symbols)*len(tfs))
	for _, tf := range tfs {
		code, err := Interval(tf)
		if err != nil {
			return nil, err
		}
		for _, symbol := range symbols {
			topics = append(topics, fmt.Sprintf("kline.%s.%s", code, symbol))
		}
	}
	return topics, nil
}

// parseKlineTopic splits a topic such as "kline.60.BTCUSDT" into its
// symbol and timeframe.
func parseKlineTopic(topic string) (string, models.Timeframe, bool) {
	parts := strings.Split(topic, ".")
	if len(parts) != 3 || parts[0] != "kline" {
		return "", "", false
	}
	tf, ok := timeframesByInterval[parts[1]]
	if !ok {
		return "", "", false
	}
	return parts[2], tf, true
}

// candle converts a push payload entry. The confirm flag marks the
// final snapshot of the interval.
func (k wsKline) candle(tf models.Timeframe) (models.Candle, error) {
	fields := [5]string{k.Open, k.High, k.Low, k.Close, k.Volume}
	var vals [5]float64
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("bad kline field %q: %w", s, err)
		}
		vals[i] = v
	}

	openTime := time.UnixMilli(k.Start).UTC()
	candle := models.Candle{
		OpenTime:  openTime,
		CloseTime: openTime.Add(tf.Duration()),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
		IsClosed:  k.Confirm,
	}
	if err := candle.Validate(); err != nil {
		return models.Candle{}, err
	}
	return candle, nil
}
