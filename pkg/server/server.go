// Package server exposes the resolver and the lookup statistics over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/japaniel/hoverdict/pkg/logging"
	"github.com/japaniel/hoverdict/pkg/resolver"
	"github.com/japaniel/hoverdict/pkg/stats"
)

const (
	defaultTopLimit = 20
	maxTopLimit     = 1000
)

// Server serves dictionary lookups. Stats may be nil, in which case lookups
// are not recorded and the stats routes answer 503.
type Server struct {
	resolver *resolver.Resolver
	stats    stats.Store
	log      logging.Logger
	e        *echo.Echo
}

// ResolveResponse is the body of /resolve. Result is set only when Found.
type ResolveResponse struct {
	Query  string           `json:"query"`
	Found  bool             `json:"found"`
	Result *resolver.Result `json:"result,omitempty"`
}

// CountResponse is the body of /stats/:word.
type CountResponse struct {
	Word  string `json:"word"`
	Count int64  `json:"count"`
}

func New(r *resolver.Resolver, st stats.Store, logger logging.Logger) *Server {
	s := &Server{resolver: r, stats: st, log: logging.OrNop(logger)}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debugf("%s %s %d %v", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	e.GET("/healthz", s.healthz)
	e.GET("/lookup/:word", s.lookup)
	e.GET("/resolve/:span", s.resolve)
	e.GET("/stats", s.top)
	e.GET("/stats/:word", s.count)

	s.e = e
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.e
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", addr)
		errCh <- s.e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) lookup(c echo.Context) error {
	return c.JSON(http.StatusOK, s.resolver.Lookup(pathParam(c, "word")))
}

func (s *Server) resolve(c echo.Context) error {
	span := pathParam(c, "span")
	resolve := s.resolver.Resolve
	if sel, _ := strconv.ParseBool(c.QueryParam("selection")); sel {
		resolve = s.resolver.ResolveSelection
	}

	res, err := resolve(span)
	if resolver.IsNotFound(err) {
		return c.JSON(http.StatusNotFound, ResolveResponse{Query: span})
	}
	if err != nil {
		return err
	}

	// Frequencies are keyed by the matched word, not the query.
	if s.stats != nil {
		if err := s.stats.Record(c.Request().Context(), res.Word); err != nil {
			s.log.Warnf("record lookup %q: %v", res.Word, err)
		}
	}
	return c.JSON(http.StatusOK, ResolveResponse{Query: span, Found: true, Result: &res})
}

func (s *Server) top(c echo.Context) error {
	if s.stats == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "lookup statistics are disabled")
	}
	limit := defaultTopLimit
	if q := c.QueryParam("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 || n > maxTopLimit {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxTopLimit))
		}
		limit = n
	}
	top, err := s.stats.Top(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if top == nil {
		top = []stats.Lookup{}
	}
	return c.JSON(http.StatusOK, top)
}

func (s *Server) count(c echo.Context) error {
	if s.stats == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "lookup statistics are disabled")
	}
	word := pathParam(c, "word")
	n, err := s.stats.Count(c.Request().Context(), word)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CountResponse{Word: word, Count: n})
}

// pathParam returns the decoded path parameter. Echo routes on URL.RawPath
// when the request has one, and the parameter is then still escaped;
// otherwise it comes from the decoded URL.Path and must not be decoded again.
func pathParam(c echo.Context, name string) string {
	v := c.Param(name)
	if c.Request().URL.RawPath == "" {
		return v
	}
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}
