package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-kit/log"

	"orbitfolio/display"
	"orbitfolio/domain"
	"orbitfolio/fxrates"
	"orbitfolio/ledger"
	"orbitfolio/valuation"
)

// RateSource what the transport needs from the rate cache
type RateSource interface {
	Snapshot() fxrates.Snapshot
	Refresh(ctx context.Context) error
}

// Server dependencies for HTTP Server functions
type Server struct {
	Ledger ledger.Service
	Rates  RateSource
	logger log.Logger
	router chi.Router
}

func NewServer(l ledger.Service, rates RateSource, logger log.Logger) *Server {
	server := &Server{
		Ledger: l,
		Rates:  rates,
		logger: logger,
		router: chi.NewRouter(),
	}
	server.routes()
	return server
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)

	s.router.Route("/api/holdings", func(r chi.Router) {
		r.Get("/", s.listHoldings())
		r.Post("/", s.addHolding())
		r.Delete("/{id}", s.removeHolding())
	})
	s.router.Get("/api/portfolio", s.portfolio())
	s.router.Get("/api/rates", s.rates())
	s.router.Post("/api/rates/refresh", s.refreshRates())
}

func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(rw, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(rw, r.ProtoMajor)
		defer func(begin time.Time) {
			s.logger.Log(
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"took", time.Since(begin),
			)
		}(time.Now())
		next.ServeHTTP(ww, r)
	})
}

// errorResponse body of every failed request
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeJSON encodes v before any header goes out so an encoding failure
// still answers 500.
func (s *Server) writeJSON(rw http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Log("msg", "encoding response", "err", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: "failed to encode response"})
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_, _ = rw.Write(append(body, '\n'))
}

type holdingResponse struct {
	domain.Holding
	Currency domain.Currency `json:"currency"`
}

func newHoldingResponse(h domain.Holding) holdingResponse {
	return holdingResponse{Holding: h, Currency: h.Currency()}
}

func (s *Server) listHoldings() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		holdings := s.Ledger.Holdings()
		response := make([]holdingResponse, len(holdings))
		for i, h := range holdings {
			response[i] = newHoldingResponse(h)
		}
		s.writeJSON(rw, http.StatusOK, response)
	}
}

// addHolding produces HTTP handler for the add-holding form
func (s *Server) addHolding() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		var form ledger.Form
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			s.writeJSON(rw, http.StatusBadRequest, errorResponse{Error: "invalid json"})
			return
		}

		h, err := s.Ledger.AddForm(form)
		var verr *ledger.ValidationError
		if errors.As(err, &verr) {
			s.writeJSON(rw, http.StatusBadRequest, errorResponse{Error: verr.Error(), Field: verr.Field})
			return
		}
		if err != nil {
			s.writeJSON(rw, http.StatusInternalServerError, errorResponse{Error: "failed to add holding"})
			return
		}
		s.writeJSON(rw, http.StatusCreated, newHoldingResponse(h))
	}
}

// removeHolding answers 204 whether or not the holding existed
func (s *Server) removeHolding() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			s.writeJSON(rw, http.StatusBadRequest, errorResponse{Error: "invalid id", Field: "id"})
			return
		}
		s.Ledger.Remove(id)
		rw.WriteHeader(http.StatusNoContent)
	}
}

// figuresResponse figures with display strings. Used only for figures that
// are available; unavailable ones are encoded as null.
type figuresResponse struct {
	Invested   float64           `json:"invested"`
	Value      float64           `json:"value"`
	PnL        float64           `json:"pnl"`
	PnLPercent float64           `json:"pnl_percent"`
	Display    map[string]string `json:"display"`
}

func newFiguresResponse(f valuation.Figures, c domain.Currency) *figuresResponse {
	if !f.Available() {
		return nil
	}
	return &figuresResponse{
		Invested:   f.Invested,
		Value:      f.Value,
		PnL:        f.PnL,
		PnLPercent: f.PnLPercent,
		Display: map[string]string{
			"invested":    display.Amount(f.Invested, c),
			"value":       display.Amount(f.Value, c),
			"pnl":         display.Amount(f.PnL, c),
			"pnl_percent": display.Percent(f.PnLPercent),
		},
	}
}

type positionResponse struct {
	Holding   holdingResponse  `json:"holding"`
	Native    *figuresResponse `json:"native"`
	Reporting *figuresResponse `json:"reporting"`
}

type portfolioResponse struct {
	ReportingCurrency domain.Currency                        `json:"reporting_currency"`
	Available         bool                                   `json:"available"`
	RatesStatus       fxrates.Status                         `json:"rates_status"`
	Stale             bool                                   `json:"stale"`
	Positions         []positionResponse                     `json:"positions"`
	Totals            *figuresResponse                       `json:"totals"`
	ByZone            map[domain.Zone]*figuresResponse       `json:"by_zone"`
	ByClass           map[domain.AssetClass]*figuresResponse `json:"by_class"`
}

// portfolio produces HTTP handler for the valuation report
func (s *Server) portfolio() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		snapshot := s.Rates.Snapshot()
		var rates valuation.Rates
		if snapshot.Table != nil {
			rates = snapshot.Table
		}
		report := valuation.Value(s.Ledger.Holdings(), rates)

		response := portfolioResponse{
			ReportingCurrency: domain.ReportingCurrency,
			Available:         report.Totals.Available(),
			RatesStatus:       snapshot.Status,
			Stale:             snapshot.Stale,
			Positions:         make([]positionResponse, len(report.Positions)),
			Totals:            newFiguresResponse(report.Totals, domain.ReportingCurrency),
			ByZone:            map[domain.Zone]*figuresResponse{},
			ByClass:           map[domain.AssetClass]*figuresResponse{},
		}
		for i, p := range report.Positions {
			pr := positionResponse{
				Holding: newHoldingResponse(p.Holding),
				Native:  newFiguresResponse(p.Native, p.Holding.Currency()),
			}
			if p.Reporting != nil {
				pr.Reporting = newFiguresResponse(*p.Reporting, domain.ReportingCurrency)
			}
			response.Positions[i] = pr
		}
		for z, f := range report.ByZone {
			response.ByZone[z] = newFiguresResponse(f, domain.ReportingCurrency)
		}
		for c, f := range report.ByClass {
			response.ByClass[c] = newFiguresResponse(f, domain.ReportingCurrency)
		}
		s.writeJSON(rw, http.StatusOK, response)
	}
}

type ratesResponse struct {
	ReportingCurrency domain.Currency `json:"reporting_currency"`
	Status            fxrates.Status  `json:"status"`
	Stale             bool            `json:"stale"`
	LastError         string          `json:"last_error,omitempty"`
	FetchedAt         *time.Time      `json:"fetched_at"`
	Factors           domain.Rates    `json:"factors"`
}

func newRatesResponse(s fxrates.Snapshot) ratesResponse {
	response := ratesResponse{
		ReportingCurrency: domain.ReportingCurrency,
		Status:            s.Status,
		Stale:             s.Stale,
		LastError:         s.LastError,
	}
	if s.Table != nil {
		fetchedAt := s.Table.FetchedAt
		response.FetchedAt = &fetchedAt
		response.Factors = s.Table.Factors
	}
	return response
}

func (s *Server) rates() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		s.writeJSON(rw, http.StatusOK, newRatesResponse(s.Rates.Snapshot()))
	}
}

// refreshRates refreshes now. A failed fetch still answers 200, the
// failure shows in the status. A client hanging up does not cancel the
// fetch; the provider client timeout bounds it.
func (s *Server) refreshRates() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		err := s.Rates.Refresh(context.WithoutCancel(r.Context()))
		if errors.Is(err, fxrates.ErrStopped) {
			s.writeJSON(rw, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
		s.writeJSON(rw, http.StatusOK, newRatesResponse(s.Rates.Snapshot()))
	}
}
