// Package bybit implements the ingestion adapters against the Bybit v5
// public market API: REST kline backfill and the public kline
// WebSocket stream.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"bybit-sentinel/internal/config"
	"bybit-sentinel/internal/errors"
	"bybit-sentinel/internal/exchange"
	"bybit-sentinel/internal/models"
	"bybit-sentinel/pkg/utils"
)

const (
	defaultRESTURL       = "https://api.bybit.com"
	defaultCategory      = "linear"
	defaultBackfillLimit = 200
	defaultPageSize      = 1000
)

// intervals maps timeframes to Bybit v5 kline interval codes.
var intervals = map[models.Timeframe]string{
	models.TF1m:  "1",
	models.TF3m:  "3",
	models.TF5m:  "5",
	models.TF15m: "15",
	models.TF30m: "30",
	models.TF1h:  "60",
	models.TF2h:  "120",
	models.TF4h:  "240",
	models.TF6h:  "360",
	models.TF12h: "720",
	models.TF1d:  "D",
	models.TF1w:  "W",
}

// timeframesByInterval is the reverse mapping, used when parsing
// stream topics back into timeframes.
var timeframesByInterval = make(map[string]models.Timeframe, len(intervals))

func init() {
	for tf, code := range intervals {
		timeframesByInterval[code] = tf
	}
}

// Interval returns the Bybit v5 interval code for tf.
func Interval(tf models.Timeframe) (string, error) {
	code, ok := intervals[tf]
	if !ok {
		return "", errors.Wrapf(errors.ErrConfigInvalid, "no bybit interval for timeframe %q", tf)
	}
	return code, nil
}

// RESTClient fetches historical klines from the Bybit v5 market API.
type RESTClient struct {
	baseURL  string
	category string
	client   *http.Client
	retry    utils.RetryConfig
	logger   zerolog.Logger
	pageSize int
	now      func() time.Time
}

var _ exchange.Provider = (*RESTClient)(nil)

// NewRESTClient builds a REST adapter from the exchange configuration.
// Empty URL and category fall back to the public linear endpoints.
func NewRESTClient(cfg config.ExchangeConfig, logger zerolog.Logger) *RESTClient {
	baseURL := cfg.RESTURL
	if baseURL == "" {
		baseURL = defaultRESTURL
	}
	category := cfg.Category
	if category == "" {
		category = defaultCategory
	}
	retry := utils.DefaultRetryConfig()
	retry.Retryable = retryableKlineError
	return &RESTClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		category: category,
		client:   &http.Client{Timeout: 10 * time.Second},
		retry:    retry,
		logger:   logger.With().Str("component", "bybit_rest").Logger(),
		pageSize: defaultPageSize,
		now:      time.Now,
	}
}

// retryableKlineError reports whether a kline fetch failure is worth
// another attempt. Transport errors and server-side Bybit codes are;
// malformed requests and responses are not. 10006 is Bybit's rate
// limit code, 10016 its internal server error.
func retryableKlineError(err error) bool {
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ee *errors.ExchangeError
	if errors.As(err, &ee) {
		code, convErr := strconv.Atoi(ee.Code)
		if convErr != nil {
			return false
		}
		return code == http.StatusTooManyRequests || (code >= 500 && code < 600) || code == 10006 || code == 10016
	}
	return false
}

type klineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Category string     `json:"category"`
		Symbol   string     `json:"symbol"`
		List     [][]string `json:"list"`
	} `json:"result"`
}

// Backfill pages backwards through /v5/market/kline until limit
// candles are collected or history runs out, returning them oldest
// first. The endpoint serves newest first, so pages are stitched and
// reversed. A candle whose interval has not elapsed yet is marked
// still forming.
func (c *RESTClient) Backfill(ctx context.Context, symbol string, tf models.Timeframe, limit int, start, end time.Time) ([]models.Candle, error) {
	interval, err := Interval(tf)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultBackfillLimit
	}

	var descending []models.Candle
	cursorEnd := end

	for len(descending) < limit {
		pageLimit := limit - len(descending)
		if pageLimit > c.pageSize {
			pageLimit = c.pageSize
		}

		rows, err := c.fetchPage(ctx, symbol, interval, pageLimit, start, cursorEnd)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}

		page, err := c.parseRows(symbol, tf, rows)
		if err != nil {
			return nil, err
		}
		descending = append(descending, page...)

		oldest := page[len(page)-1].OpenTime
		if !start.IsZero() && !oldest.After(start) {
			break
		}
		if len(rows) < pageLimit {
			break
		}
		cursorEnd = oldest.Add(-time.Millisecond)
	}

	if len(descending) > limit {
		descending = descending[:limit]
	}

	out := make([]models.Candle, 0, len(descending))
	for i := len(descending) - 1; i >= 0; i-- {
		out = append(out, descending[i])
	}
	c.logger.Debug().
		Str("symbol", symbol).
		Str("timeframe", tf.String()).
		Int("candles", len(out)).
		Msg("backfill complete")
	return out, nil
}

func (c *RESTClient) fetchPage(ctx context.Context, symbol, interval string, limit int, start, end time.Time) ([][]string, error) {
	params := url.Values{}
	params.Set("category", c.category)
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	if !start.IsZero() {
		params.Set("start", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if !end.IsZero() {
		params.Set("end", strconv.FormatInt(end.UnixMilli(), 10))
	}
	endpoint := fmt.Sprintf("%s/v5/market/kline?%s", c.baseURL, params.Encode())

	return utils.RetryWithResult(ctx, c.retry, func() ([][]string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build kline request: %w", err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch klines: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read kline response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, errors.NewExchangeError(strconv.Itoa(resp.StatusCode), strings.TrimSpace(string(body)), nil)
		}

		var kr klineResponse
		if err := json.Unmarshal(body, &kr); err != nil {
			return nil, fmt.Errorf("failed to parse kline response: %w", err)
		}
		if kr.RetCode != 0 {
			return nil, errors.NewExchangeError(strconv.Itoa(kr.RetCode), kr.RetMsg, nil)
		}
		return kr.Result.List, nil
	})
}

// parseRows maps raw kline rows [start, open, high, low, close,
// volume, turnover] onto candles, keeping the served newest-first
// order.
func (c *RESTClient) parseRows(symbol string, tf models.Timeframe, rows [][]string) ([]models.Candle, error) {
	now := c.now()
	out := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			return nil, errors.NewDataError("kline", symbol, fmt.Sprintf("row has %d fields, need 6", len(row)), nil)
		}
		startMs, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, errors.NewDataError("kline", symbol, "bad start time "+row[0], err)
		}
		var vals [5]float64
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				return nil, errors.NewDataError("kline", symbol, "bad numeric field "+row[i+1], err)
			}
			vals[i] = v
		}

		openTime := time.UnixMilli(startMs).UTC()
		closeTime := openTime.Add(tf.Duration())
		candle := models.Candle{
			OpenTime:  openTime,
			CloseTime: closeTime,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
			IsClosed:  !closeTime.After(now),
		}
		if err := candle.Validate(); err != nil {
			return nil, errors.NewDataError("kline", symbol, "invalid candle", err)
		}
		out = append(out, candle)
	}
	return out, nil
}
