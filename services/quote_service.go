package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Alpha Vantage constants
const (
	AlphaVantageBaseURL = "https://www.alphavantage.co/query"
	MaxSearchResults    = 7
	MaxIntradayPoints   = 300
	MaxDailyPoints      = 100
)

// FetchErrorKind classifies quote fetch failures
type FetchErrorKind string

const (
	FetchRateLimited          FetchErrorKind = "rate_limited"
	FetchUnreachable          FetchErrorKind = "unreachable"
	FetchMalformedResponse    FetchErrorKind = "malformed_response"
	FetchConfigurationMissing FetchErrorKind = "configuration_missing"
)

// FetchError is the tagged failure returned by the quote adapter. Callers
// branch on Kind instead of aborting their loop.
type FetchError struct {
	Kind   FetchErrorKind
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Symbol, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Symbol, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Quote is the normalized shape used by the streaming core
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"changePercent"`
	Time          string  `json:"time"`
}

// QuoteFetcher fetches the current quote for a single symbol
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
}

// FullQuote carries the complete quote mapping served by the quote proxy
type FullQuote struct {
	Symbol           string  `json:"symbol"`
	Price            float64 `json:"price"`
	Change           float64 `json:"change"`
	ChangePercent    float64 `json:"changePercent"`
	Volume           float64 `json:"volume"`
	LatestTradingDay string  `json:"latestTradingDay"`
	PreviousClose    float64 `json:"previousClose"`
	Open             float64 `json:"open"`
	High             float64 `json:"high"`
	Low              float64 `json:"low"`
}

// SearchResult is one symbol search match
type SearchResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Region   string `json:"region"`
	Currency string `json:"currency"`
}

// HistoricPoint is one closing price observation
type HistoricPoint struct {
	Time   string  `json:"t"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// QuoteService talks to Alpha Vantage
type QuoteService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// QuoteServiceOption configures a QuoteService
type QuoteServiceOption func(*QuoteService)

// WithBaseURL overrides the provider endpoint
func WithBaseURL(baseURL string) QuoteServiceOption {
	return func(s *QuoteService) {
		s.baseURL = baseURL
	}
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(client *http.Client) QuoteServiceOption {
	return func(s *QuoteService) {
		s.httpClient = client
	}
}

// NewQuoteService creates a quote service with the given credential
func NewQuoteService(apiKey string, timeout time.Duration, opts ...QuoteServiceOption) *QuoteService {
	s := &QuoteService{
		apiKey:     apiKey,
		baseURL:    AlphaVantageBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// get issues one provider request and returns the decoded JSON object
func (s *QuoteService) get(ctx context.Context, symbol string, params url.Values) (map[string]json.RawMessage, error) {
	if s.apiKey == "" {
		return nil, &FetchError{Kind: FetchConfigurationMissing, Symbol: symbol}
	}

	params.Set("apikey", s.apiKey)
	endpoint := s.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchUnreachable, Symbol: symbol, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: FetchUnreachable, Symbol: symbol, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &FetchError{Kind: FetchRateLimited, Symbol: symbol}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{
			Kind:   FetchUnreachable,
			Symbol: symbol,
			Err:    fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &FetchError{Kind: FetchMalformedResponse, Symbol: symbol, Err: err}
	}

	// Alpha Vantage reports throttling as 200 with a Note/Information field
	for _, key := range []string{"Note", "Information"} {
		if _, ok := payload[key]; ok {
			return nil, &FetchError{Kind: FetchRateLimited, Symbol: symbol}
		}
	}
	if msg, ok := payload["Error Message"]; ok {
		return nil, &FetchError{
			Kind:   FetchMalformedResponse,
			Symbol: symbol,
			Err:    fmt.Errorf("provider error: %s", string(msg)),
		}
	}

	return payload, nil
}

func globalQuoteFields(payload map[string]json.RawMessage) (map[string]string, bool) {
	raw, ok := payload["Global Quote"]
	if !ok {
		return nil, false
	}
	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

// FetchQuote fetches the current quote for the streaming core. Missing or
// unparseable numeric fields are a MalformedResponse, never a zero value.
func (s *QuoteService) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	payload, err := s.get(ctx, symbol, params)
	if err != nil {
		return Quote{}, err
	}

	fields, ok := globalQuoteFields(payload)
	if !ok || len(fields) == 0 {
		return Quote{}, &FetchError{
			Kind:   FetchMalformedResponse,
			Symbol: symbol,
			Err:    fmt.Errorf("missing Global Quote object"),
		}
	}

	price, err := strconv.ParseFloat(fields["05. price"], 64)
	if err != nil {
		return Quote{}, &FetchError{
			Kind:   FetchMalformedResponse,
			Symbol: symbol,
			Err:    fmt.Errorf("bad price %q", fields["05. price"]),
		}
	}

	changePercent, err := strconv.ParseFloat(strings.TrimSuffix(fields["10. change percent"], "%"), 64)
	if err != nil {
		return Quote{}, &FetchError{
			Kind:   FetchMalformedResponse,
			Symbol: symbol,
			Err:    fmt.Errorf("bad change percent %q", fields["10. change percent"]),
		}
	}

	quoteSymbol := fields["01. symbol"]
	if quoteSymbol == "" {
		quoteSymbol = symbol
	}

	return Quote{
		Symbol:        quoteSymbol,
		Price:         price,
		ChangePercent: changePercent,
		Time:          fields["07. latest trading day"],
	}, nil
}

// FetchFullQuote fetches the richer quote served by the quote proxy endpoint.
// Parsing is lenient: optional numeric fields default to zero.
func (s *QuoteService) FetchFullQuote(ctx context.Context, symbol string) (FullQuote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	payload, err := s.get(ctx, symbol, params)
	if err != nil {
		return FullQuote{}, err
	}

	fields, ok := globalQuoteFields(payload)
	if !ok || len(fields) == 0 {
		return FullQuote{}, &FetchError{
			Kind:   FetchMalformedResponse,
			Symbol: symbol,
			Err:    fmt.Errorf("missing Global Quote object"),
		}
	}

	return FullQuote{
		Symbol:           fields["01. symbol"],
		Price:            parseNum(fields["05. price"]),
		Change:           parseNum(fields["09. change"]),
		ChangePercent:    parseNum(strings.TrimSuffix(fields["10. change percent"], "%")),
		Volume:           parseNum(fields["06. volume"]),
		LatestTradingDay: fields["07. latest trading day"],
		PreviousClose:    parseNum(fields["08. previous close"]),
		Open:             parseNum(fields["02. open"]),
		High:             parseNum(fields["03. high"]),
		Low:              parseNum(fields["04. low"]),
	}, nil
}

// Search looks up symbols matching the query
func (s *QuoteService) Search(ctx context.Context, query string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("function", "SYMBOL_SEARCH")
	params.Set("keywords", query)

	payload, err := s.get(ctx, query, params)
	if err != nil {
		return nil, err
	}

	var matches []map[string]string
	if raw, ok := payload["bestMatches"]; ok {
		if err := json.Unmarshal(raw, &matches); err != nil {
			return nil, &FetchError{Kind: FetchMalformedResponse, Symbol: query, Err: err}
		}
	}

	results := make([]SearchResult, 0, MaxSearchResults)
	for _, m := range matches {
		if len(results) >= MaxSearchResults {
			break
		}
		results = append(results, SearchResult{
			Symbol:   m["1. symbol"],
			Name:     m["2. name"],
			Region:   m["4. region"],
			Currency: m["8. currency"],
		})
	}
	return results, nil
}

// Historic fetches closing prices, intraday (5min) or daily, in
// chronological order
func (s *QuoteService) Historic(ctx context.Context, symbol, interval string) ([]HistoricPoint, error) {
	params := url.Values{}
	seriesKey := "Time Series (Daily)"
	maxPoints := MaxDailyPoints
	if interval == "intraday" {
		params.Set("function", "TIME_SERIES_INTRADAY")
		params.Set("interval", "5min")
		seriesKey = "Time Series (5min)"
		maxPoints = MaxIntradayPoints
	} else {
		params.Set("function", "TIME_SERIES_DAILY")
	}
	params.Set("symbol", symbol)
	params.Set("outputsize", "compact")

	payload, err := s.get(ctx, symbol, params)
	if err != nil {
		return nil, err
	}

	var series map[string]map[string]string
	if raw, ok := payload[seriesKey]; ok {
		if err := json.Unmarshal(raw, &series); err != nil {
			return nil, &FetchError{Kind: FetchMalformedResponse, Symbol: symbol, Err: err}
		}
	}

	// Series keys are timestamps; newest first after a descending sort,
	// then trimmed and reversed to chronological order like the chart
	// expects.
	stamps := make([]string, 0, len(series))
	for t := range series {
		stamps = append(stamps, t)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(stamps)))
	if len(stamps) > maxPoints {
		stamps = stamps[:maxPoints]
	}

	points := make([]HistoricPoint, 0, len(stamps))
	for i := len(stamps) - 1; i >= 0; i-- {
		t := stamps[i]
		points = append(points, HistoricPoint{
			Time:   t,
			Close:  parseNum(series[t]["4. close"]),
			Volume: parseNum(series[t]["5. volume"]),
		})
	}
	return points, nil
}

func parseNum(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

