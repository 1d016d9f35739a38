// Package api exposes the engine over HTTP. This is the entire caller
// surface: buy, sell, report, the two listings, the instrument
// catalog and price history. There is no other access path to the
// stores.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"github.com/portfolio-hub/invest-tracker/internal/engine"
	"github.com/portfolio-hub/invest-tracker/internal/logger"
	"github.com/portfolio-hub/invest-tracker/internal/marketdata"
)

const _defaultHistoryRange = "1mo"

type Handler struct {
	engine    *engine.Engine
	md        *marketdata.Client
	benchmark string
	opTimeout time.Duration
	logger    logger.Logger
}

func NewHandler(e *engine.Engine, md *marketdata.Client, benchmark string, opTimeout time.Duration, logger logger.Logger) *Handler {
	return &Handler{
		engine:    e,
		md:        md,
		benchmark: benchmark,
		opTimeout: opTimeout,
		logger:    logger,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/portfolios/{id}/buy", h.handleBuy)
	mux.HandleFunc("POST /api/portfolios/{id}/sell", h.handleSell)
	mux.HandleFunc("GET /api/portfolios/{id}/positions", h.handlePositions)
	mux.HandleFunc("GET /api/portfolios/{id}/ledger", h.handleLedger)
	mux.HandleFunc("GET /api/portfolios/{id}/report", h.handleReport)
	mux.HandleFunc("GET /api/instruments", h.handleInstruments)
	mux.HandleFunc("GET /api/history/{symbol}", h.handleHistory)
	return mux
}

type tradeRequest struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	All       bool            `json:"all"`
	Price     decimal.Decimal `json:"price"`
	RequestID string          `json:"request_id"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !h.decode(w, r.Body, &req) {
		return
	}

	ctx, cancel := h.opContext(r.Context())
	defer cancel()

	res, err := h.engine.Buy(ctx, engine.BuyRequest{
		PortfolioID: r.PathValue("id"),
		Symbol:      req.Symbol,
		Name:        req.Name,
		Quantity:    req.Quantity,
		Price:       req.Price,
		RequestID:   req.RequestID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleSell(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !h.decode(w, r.Body, &req) {
		return
	}

	ctx, cancel := h.opContext(r.Context())
	defer cancel()

	res, err := h.engine.Sell(ctx, engine.SellRequest{
		PortfolioID: r.PathValue("id"),
		Symbol:      req.Symbol,
		Quantity:    req.Quantity,
		All:         req.All,
		Price:       req.Price,
		RequestID:   req.RequestID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.engine.Positions(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, positions)
}

// handleLedger returns trade history newest-first, a read-side sort
// over the store's ascending order.
func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.Ledger(r.Context(), r.PathValue("id"), r.URL.Query().Get("symbol"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	slices.Reverse(entries)
	h.writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Report(r.Context(), r.PathValue("id"), h.benchmark, h.md)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleInstruments(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Instruments())
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	rng := r.URL.Query().Get("range")
	if rng == "" {
		rng = _defaultHistoryRange
	}

	points, err := h.md.History(r.Context(), r.PathValue("symbol"), rng)
	if err != nil {
		h.writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, points)
}

func (h *Handler) opContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, h.opTimeout)
}

func (h *Handler) decode(w http.ResponseWriter, body io.Reader, dst any) bool {
	input, err := io.ReadAll(body)
	if err == nil {
		err = sonic.Unmarshal(input, dst)
	}
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrInsufficientQuantity), errors.Is(err, engine.ErrDuplicateRequest):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrStorageTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, engine.ErrStorage):
		status = http.StatusBadGateway
	}
	h.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	out, err := sonic.Marshal(v)
	if err != nil {
		h.logger.Errorf("%s: can't marshal response", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(out); err != nil {
		h.logger.Errorf("%s: can't write response", err)
	}
}
