// Package httpapi exposes the dispatcher and the ledger over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"payline/internal/dispatch"
	"payline/internal/eventbus"
	"payline/internal/ledger"
	"payline/internal/scheduler"
	"payline/internal/session"
	logx "payline/pkg/logx"
)

type Config struct {
	Addr string

	// RatePerSec / Burst throttle mutating requests; 0 disables throttling.
	RatePerSec int
	Burst      int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	cfg Config
	log logx.Logger

	dispatcher *dispatch.Dispatcher
	store      ledger.Store
	sessions   *session.Store
	sched      *scheduler.Service
	bus        eventbus.Bus

	srv     *http.Server
	started time.Time
}

func NewServer(cfg Config, d *dispatch.Dispatcher, store ledger.Store, sessions *session.Store, sched *scheduler.Service, bus eventbus.Bus, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8480"
	}
	return &Server{
		cfg:        cfg,
		log:        log.With(logx.String("comp", "httpapi")),
		dispatcher: d,
		store:      store,
		sessions:   sessions,
		sched:      sched,
		bus:        bus,
	}
}

// Router builds the gin engine. Exposed for tests.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "payline", "status": "running"})
	})

	v1 := r.Group("/v1")
	v1.POST("/actions", s.rateLimit(), s.SubmitAction)
	v1.GET("/actions/pending", s.ListPending)
	v1.GET("/actions/archive", s.ListArchive)
	v1.GET("/status", s.Status)
	return r
}

func (s *Server) Start(ctx context.Context) error {
	_ = ctx
	s.started = time.Now()
	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	go func() {
		s.log.Info("listening", logx.String("addr", s.cfg.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", logx.Err(err))
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
