package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/determined-ai/hpcoords/internal/api"
	"github.com/determined-ai/hpcoords/internal/config"
	"github.com/determined-ai/hpcoords/internal/db"
	"github.com/determined-ai/hpcoords/internal/prom"
	"github.com/determined-ai/hpcoords/pkg/logger"
	"github.com/determined-ai/hpcoords/pkg/syncx/errgroupx"
)

const shutdownTimeout = 10 * time.Second

// Info is returned by the /info endpoint.
type Info struct {
	Version string `json:"version"`
}

// Server is the hpcoords HTTP server.
type Server struct {
	version string
	config  *config.Config
}

// New creates a server with the given configuration. It does nothing until Run is called.
func New(version string, cfg *config.Config) *Server {
	return &Server{version: version, config: cfg}
}

// Options translates the stream configuration into API options.
func Options(cfg config.StreamConfig) api.Options {
	opts := api.DefaultOptions()
	opts.Period = cfg.Period()
	opts.MaxPeriod = cfg.MaxPeriod()
	opts.BatchesMargin = cfg.BatchesMargin
	opts.CacheSize = cfg.ExperimentCacheSize
	return opts
}

// NewEcho builds the HTTP application serving store. Metrics are exported on /metrics from reg.
func NewEcho(store api.Store, version string, reg *prometheus.Registry, opts api.Options) (*echo.Echo, error) {
	if err := prom.Register(reg); err != nil {
		return nil, errors.Wrap(err, "registering metrics")
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, errors.Wrap(err, "registering go collector")
	}

	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(requestMetrics)
	e.Logger = logger.NewEchoLogger("http")
	e.HideBanner = true
	e.HTTPErrorHandler = api.JSONErrorHandler

	e.GET("/info", func(c echo.Context) error {
		return c.JSON(http.StatusOK, Info{Version: version})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	srv, err := api.NewServer(store, opts)
	if err != nil {
		return nil, err
	}
	srv.Register(e)
	return e, nil
}

func requestMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		code := c.Response().Status
		if err != nil {
			code = http.StatusInternalServerError
			var he *echo.HTTPError
			if errors.As(api.EchoErr(err), &he) {
				code = he.Code
			}
		}
		prom.RequestSeconds.
			WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(code)).
			Observe(time.Since(start).Seconds())
		return err
	}
}

// Run connects to the database and serves until ctx is canceled or the server fails.
func (s *Server) Run(ctx context.Context) error {
	pg, err := db.Connect(ctx, &s.config.DB)
	if err != nil {
		return err
	}
	defer func() {
		if err := pg.Close(); err != nil {
			log.WithError(err).Error("failed to close database")
		}
	}()

	e, err := NewEcho(pg, s.version, prometheus.NewRegistry(), Options(s.config.Stream))
	if err != nil {
		return err
	}
	return Serve(ctx, e, fmt.Sprintf(":%d", s.config.Port))
}

// Serve runs e on addr until ctx is canceled, then shuts it down. Requests, including hijacked
// websocket connections, see a context that is canceled on shutdown.
func Serve(ctx context.Context, e *echo.Echo, addr string) error {
	g := errgroupx.WithContext(ctx)
	e.Server.BaseContext = func(net.Listener) context.Context { return g.Context() }

	g.Go(func(ctx context.Context) error {
		log.Infof("accepting incoming connections on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "HTTP server failed")
		}
		return nil
	})
	g.Go(func(ctx context.Context) error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutting down HTTP server")
		}
		return nil
	})
	return g.Wait()
}
