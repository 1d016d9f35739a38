// Package marketdata is the HTTP client for the external quote
// service. The engine treats every failure here as a per-symbol
// lookup error, never fatal to a report.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/ratelimit"
	"resty.dev/v3"

	"github.com/portfolio-hub/invest-tracker/internal/config"
	"github.com/portfolio-hub/invest-tracker/internal/logger"
	"github.com/portfolio-hub/invest-tracker/internal/model"
	"github.com/portfolio-hub/invest-tracker/internal/money"
)

const (
	_quoteURL   = "/v1/quote"
	_historyURL = "/v1/history"
)

type quoteResponse struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	PrevClose decimal.Decimal `json:"prev_close"`
}

type historyResponse struct {
	Symbol string             `json:"symbol"`
	Points []model.PricePoint `json:"points"`
}

type errorResponse struct {
	Message string `json:"message"`
}

type Client struct {
	c           *resty.Client
	rateLimiter ratelimit.Limiter

	logger logger.Logger
}

func NewClient(cfg config.MarketDataConfig, logger logger.Logger) *Client {
	client := resty.New().
		SetLogger(logger).
		SetBaseURL(cfg.Address).
		SetTimeout(cfg.Timeout)

	return &Client{
		c:           client,
		rateLimiter: ratelimit.New(cfg.RequestsPerMinute, ratelimit.Per(1*time.Minute)),
		logger:      logger,
	}
}

func (c *Client) quote(ctx context.Context, symbol string) (quoteResponse, error) {
	c.rateLimiter.Take()

	req := c.c.R().
		SetQueryParam("symbol", model.CanonicalSymbol(symbol)).
		SetResult(&quoteResponse{}).
		SetError(&errorResponse{}).
		SetContext(ctx)

	resp, err := req.Get(_quoteURL)
	if err != nil {
		return quoteResponse{}, fmt.Errorf("%w: can't send quote request", err)
	}
	defer resp.Body.Close()

	c.logger.Debugf("got response %s status: %s, %s", resp.Request.URL, resp.Status(), resp.Duration())

	if resp.IsError() {
		response := resp.Error().(*errorResponse)
		return quoteResponse{}, fmt.Errorf("%s: quote request error for %s", response.Message, symbol)
	}
	if resp.IsSuccess() {
		return *resp.Result().(*quoteResponse), nil
	}

	return quoteResponse{}, fmt.Errorf("quote unexpected request error: %s", resp.Status())
}

func (c *Client) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q, err := c.quote(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Price, nil
}

// DailyChange returns the current price and its change against the
// previous close in percent. Change is 0 when the source has no
// previous close for the symbol.
func (c *Client) DailyChange(ctx context.Context, symbol string) (decimal.Decimal, decimal.Decimal, error) {
	q, err := c.quote(ctx, symbol)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if q.PrevClose.IsZero() {
		return q.Price, decimal.Zero, nil
	}
	return q.Price, money.PLPercent(q.Price, q.PrevClose), nil
}

// History returns close prices for the range (e.g. "1mo", "1d"),
// oldest first.
func (c *Client) History(ctx context.Context, symbol, rng string) ([]model.PricePoint, error) {
	c.rateLimiter.Take()

	req := c.c.R().
		SetQueryParams(map[string]string{
			"symbol": model.CanonicalSymbol(symbol),
			"range":  rng,
		}).
		SetResult(&historyResponse{}).
		SetError(&errorResponse{}).
		SetContext(ctx)

	resp, err := req.Get(_historyURL)
	if err != nil {
		return nil, fmt.Errorf("%w: can't send history request", err)
	}
	defer resp.Body.Close()

	c.logger.Debugf("got response %s status: %s, %s", resp.Request.URL, resp.Status(), resp.Duration())

	if resp.IsError() {
		response := resp.Error().(*errorResponse)
		return nil, fmt.Errorf("%s: history request error for %s", response.Message, symbol)
	}
	if resp.IsSuccess() {
		return resp.Result().(*historyResponse).Points, nil
	}

	return nil, fmt.Errorf("history unexpected request error: %s", resp.Status())
}
