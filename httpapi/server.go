package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-payroll-link/core"
	"github.com/goliatone/go-payroll-link/webhooks"
)

const (
	BasePath = "/api/payroll"

	maxRequestBodyBytes int64 = 64 << 10

	// writeTimeoutMargin leaves room to encode the error envelope after the
	// provider call budget is spent.
	writeTimeoutMargin     = 10 * time.Second
	defaultProviderTimeout = 30 * time.Second
)

// Server exposes the payroll pipeline as JSON endpoints.
type Server struct {
	service  core.PayrollService
	webhooks *webhooks.Handler
	logger   core.Logger
	router   *gin.Engine

	writeTimeout time.Duration
}

type Option func(*Server)

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWebhookHandler sets the handler behind POST /api/payroll/webhook.
func WithWebhookHandler(handler *webhooks.Handler) Option {
	return func(s *Server) {
		if handler != nil {
			s.webhooks = handler
		}
	}
}

// WithTransportConfig sizes the write timeout to the worst case provider call
// the transport can make, retries included.
func WithTransportConfig(cfg core.TransportConfig) Option {
	return func(s *Server) {
		s.writeTimeout = writeTimeoutFor(cfg)
	}
}

func NewServer(service core.PayrollService, opts ...Option) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("httpapi: payroll service is required")
	}
	_, logger := glog.Resolve("payroll.http", nil, nil)
	s := &Server{
		service:      service,
		logger:       glog.Ensure(logger),
		writeTimeout: writeTimeoutFor(core.DefaultConfig().Transport),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.webhooks == nil {
		s.webhooks = webhooks.NewHandler(webhooks.WithLogger(s.logger))
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group(BasePath)
	{
		api.GET("/mode", s.handleMode)
		api.POST("/link-token", s.handleLinkToken)
		api.POST("/exchange", s.handleExchange)
		api.POST("/snapshot", s.handleSnapshot)
		api.POST("/webhook", gin.WrapH(webhooks.HTTPHandler(s.webhooks)))
	}
	s.router = router
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer builds a server for addr. The write timeout outlasts a fully
// retried provider call so clients receive the error envelope.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.writeTimeout,
	}
}

func writeTimeoutFor(cfg core.TransportConfig) time.Duration {
	return cfg.MaxCallDuration(defaultProviderTimeout) + writeTimeoutMargin
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startedAt := time.Now()
		c.Next()
		s.logger.Debug("payroll http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(startedAt).Milliseconds(),
		)
	}
}
