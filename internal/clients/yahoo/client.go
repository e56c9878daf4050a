package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// baseURL is the Yahoo Finance chart API endpoint. The chart API returns
// JSON and is more reliable than the CSV download endpoint.
const baseURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// Client is a Yahoo Finance API client
type Client struct {
	client *http.Client
	log    zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "yahoo").Logger(),
	}
}

// chartResponse mirrors the chart API payload. Missing days arrive as JSON
// nulls, which decode to zero; zero closes are treated as missing.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// FetchDailyCloses fetches daily close and adjusted-close prices for a
// symbol over [start, end]. Days Yahoo reports as null are skipped.
func (c *Client) FetchDailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]DailyPrice, error) {
	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("period1", fmt.Sprintf("%d", start.Unix()))
	params.Add("period2", fmt.Sprintf("%d", end.AddDate(0, 0, 1).Unix()))
	params.Add("includeAdjustedClose", "true")

	reqURL := baseURL + url.QueryEscape(symbol) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Yahoo Finance API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result chartResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Chart.Error != nil {
		return nil, fmt.Errorf("Yahoo Finance API error: %v", result.Chart.Error)
	}
	if len(result.Chart.Result) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("No price data returned")
		return []DailyPrice{}, nil
	}

	chartData := result.Chart.Result[0]
	if len(chartData.Indicators.Quote) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("No quote data in response")
		return []DailyPrice{}, nil
	}
	closes := chartData.Indicators.Quote[0].Close

	var adjCloses []float64
	if len(chartData.Indicators.AdjClose) > 0 {
		adjCloses = chartData.Indicators.AdjClose[0].AdjClose
	}

	var prices []DailyPrice
	for i, ts := range chartData.Timestamp {
		if i >= len(closes) || closes[i] == 0 {
			continue
		}
		price := DailyPrice{
			// Truncate to the trading day.
			Date:  time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Close: closes[i],
		}
		if i < len(adjCloses) && adjCloses[i] != 0 {
			adj := adjCloses[i]
			price.AdjClose = &adj
		}
		prices = append(prices, price)
	}

	c.log.Info().
		Str("symbol", symbol).
		Int("count", len(prices)).
		Msg("Fetched daily prices")
	return prices, nil
}
