// Package api exposes the quoting and swap lifecycle over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"omni-swap/pkg/adapter"
	"omni-swap/pkg/quote"
	"omni-swap/pkg/swap"
	"omni-swap/pkg/types"
)

// Server hosts the REST endpoints
type Server struct {
	quotes *quote.Service
	swaps  *swap.Service
	logger zerolog.Logger

	http *http.Server
}

// NewServer wires the gin router over the quote and swap services
func NewServer(addr string, quotes *quote.Service, swaps *swap.Service, logger zerolog.Logger) *Server {
	s := &Server{
		quotes: quotes,
		swaps:  swaps,
		logger: logger.With().Str("component", "api").Logger(),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/v1")
	{
		v1.POST("/quotes", s.createQuote)
		v1.GET("/quotes/:id", s.getQuote)
		v1.POST("/quotes/:id/refresh", s.refreshQuote)
		v1.POST("/swaps/build", s.buildSwap)
		v1.POST("/swaps", s.executeSwap)
		v1.GET("/swaps/:id", s.getSwap)
	}

	s.http = &http.Server{Addr: addr, Handler: router}
	return s
}

// Run serves until the listener fails or Shutdown is called
func (s *Server) Run() error {
	s.logger.Info().Str("addr", s.http.Addr).Msg("api server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(status, errorResponse{Error: err.Error()})
}

type quoteRequest struct {
	FromToken   types.Token `json:"from_token" binding:"required"`
	ToToken     types.Token `json:"to_token" binding:"required"`
	AmountIn    string      `json:"amount_in" binding:"required"`
	SlippageBps int         `json:"slippage_bps"`
	UserAddress string      `json:"user_address"`
	Recipient   string      `json:"recipient"`
	Include     []string    `json:"include,omitempty"`
	Exclude     []string    `json:"exclude,omitempty"`
	Prefer      []string    `json:"prefer,omitempty"`
}

func (s *Server) createQuote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	q, err := s.quotes.GetQuote(c.Request.Context(), quote.Request{
		FromToken:   req.FromToken,
		ToToken:     req.ToToken,
		AmountIn:    req.AmountIn,
		SlippageBps: req.SlippageBps,
		UserAddress: req.UserAddress,
		Recipient:   req.Recipient,
		Options: adapter.FetchOptions{
			Include: req.Include,
			Exclude: req.Exclude,
			Prefer:  req.Prefer,
		},
	})
	if err != nil {
		if errors.Is(err, quote.ErrNoRoutes) {
			s.fail(c, http.StatusNotFound, err)
			return
		}
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) getQuote(c *gin.Context) {
	q, err := s.quotes.GetQuoteByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, quote.ErrQuoteNotFound) {
			s.fail(c, http.StatusNotFound, err)
			return
		}
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) refreshQuote(c *gin.Context) {
	q, err := s.quotes.RefreshQuote(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, quote.ErrQuoteNotFound):
			s.fail(c, http.StatusNotFound, err)
		case errors.Is(err, quote.ErrNoRoutes):
			s.fail(c, http.StatusNotFound, err)
		default:
			s.fail(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) buildSwap(c *gin.Context) {
	var req swap.BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	if req.QuoteID == "" {
		s.fail(c, http.StatusBadRequest, errors.New("quote_id is required"))
		return
	}

	result, err := s.swaps.BuildSwapTransaction(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, quote.ErrQuoteNotFound), errors.Is(err, swap.ErrRouteNotFound):
			s.fail(c, http.StatusNotFound, err)
		default:
			s.fail(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) executeSwap(c *gin.Context) {
	var req swap.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	if req.QuoteID == "" || req.Signed.Raw == "" {
		s.fail(c, http.StatusBadRequest, errors.New("quote_id and signed_transaction are required"))
		return
	}

	// Broadcast can outlive an impatient client; cap it independently
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	sw, err := s.swaps.ExecuteSwap(ctx, req)
	if err != nil {
		if sw != nil {
			// Swap record exists in FAILED state; report it with the error
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "swap": sw})
			return
		}
		switch {
		case errors.Is(err, quote.ErrQuoteNotFound), errors.Is(err, swap.ErrRouteNotFound):
			s.fail(c, http.StatusNotFound, err)
		default:
			s.fail(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusOK, sw)
}

func (s *Server) getSwap(c *gin.Context) {
	sw, err := s.swaps.GetSwapStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, swap.ErrSwapNotFound) {
			s.fail(c, http.StatusNotFound, err)
			return
		}
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, sw)
}
