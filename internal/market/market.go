// Package market fetches daily price history from the Yahoo Finance
// chart API and derives a small summary with rolling-average indicators.
package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// ErrNoData marks a symbol the data source knows nothing about, as
// opposed to a transport failure.
var ErrNoData = errors.New("no market data")

// Summary is the per-symbol market snapshot served by /analyze-market.
// SMA values are nil when the history is shorter than the window.
type Summary struct {
	Symbol       string   `json:"symbol"`
	CurrentPrice float64  `json:"current_price"`
	DailyChange  float64  `json:"daily_change"`
	Volume       int64    `json:"volume"`
	SMA20        *float64 `json:"sma_20"`
	SMA50        *float64 `json:"sma_50"`
	Timestamp    string   `json:"timestamp"`
}

// Bar is one daily observation.
type Bar struct {
	Time   time.Time
	Close  float64
	Volume int64
}

// Client talks to the chart endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithBaseURL is used by tests to point at a stub server.
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = baseURL
	return c
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Summary fetches ~3 months of daily bars and summarizes them. A symbol
// with no data is a caller error (bad request), distinct from transport
// failures.
func (c *Client) Summary(symbol string) (*Summary, error) {
	bars, err := c.fetchDaily(symbol)
	if err != nil {
		return nil, err
	}
	if len(bars) < 2 {
		return nil, fmt.Errorf("%w: unable to fetch market data for %s", ErrNoData, symbol)
	}
	return summarize(symbol, bars), nil
}

func (c *Client) fetchDaily(symbol string) ([]Bar, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=3mo&interval=1d", c.baseURL, url.PathEscape(symbol))

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "trading-rag/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market data request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return nil, fmt.Errorf("market data request failed: %d", resp.StatusCode)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse market data: %v", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrNoData, symbol, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: unable to fetch market data for %s", ErrNoData, symbol)
	}

	result := parsed.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	var bars []Bar
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			// gaps happen on half sessions; skip them
			continue
		}
		bar := Bar{Time: time.Unix(ts, 0), Close: *quote.Close[i]}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}

	log.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("Fetched market data")
	return bars, nil
}

// summarize derives the snapshot from daily bars, latest last.
func summarize(symbol string, bars []Bar) *Summary {
	latest := bars[len(bars)-1]
	prev := bars[len(bars)-2]

	return &Summary{
		Symbol:       symbol,
		CurrentPrice: round2(latest.Close),
		DailyChange:  round2((latest.Close - prev.Close) / prev.Close * 100),
		Volume:       latest.Volume,
		SMA20:        sma(bars, 20),
		SMA50:        sma(bars, 50),
		Timestamp:    latest.Time.Format("2006-01-02 15:04:05"),
	}
}

// sma is the rolling mean of the last window closes, nil when fewer bars
// exist than the window requires.
func sma(bars []Bar, window int) *float64 {
	if len(bars) < window {
		return nil
	}
	var sum float64
	for _, b := range bars[len(bars)-window:] {
		sum += b.Close
	}
	v := round2(sum / float64(window))
	return &v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
