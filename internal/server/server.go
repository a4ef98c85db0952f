package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rewards-ledger-bot/internal/cryptopay"
	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	DefaultShutdownTimeout = 30 * time.Second
	maxWebhookBody         = 1 << 20
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Settler applies a processor invoice status to the ledger
type Settler interface {
	Settle(ctx context.Context, remote models.ProcessorInvoice) (*models.InvoiceCheck, error)
}

// Server exposes health, metrics and the payment processor webhook
type Server struct {
	engine          *gin.Engine
	httpServer      *http.Server
	health          HealthChecker
	deposits        Settler
	verifier        *cryptopay.WebhookVerifier
	shutdownTimeout time.Duration
}

// NewServer builds the router. A nil verifier leaves the webhook route unregistered.
func NewServer(cfg models.ServerConfig, health HealthChecker, deposits Settler, verifier *cryptopay.WebhookVerifier) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		engine:          engine,
		health:          health,
		deposits:        deposits,
		verifier:        verifier,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = DefaultShutdownTimeout
	}

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if verifier != nil && deposits != nil {
		engine.POST("/webhooks/cryptopay", s.handleCryptoPayWebhook)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves in the background; listener errors are logged
func (s *Server) Start() {
	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("HTTP server failed", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	zap.L().Info("HTTP server stopped")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.health.HealthCheck(c.Request.Context()); err != nil {
		zap.L().Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCryptoPayWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	update, err := s.verifier.ParseUpdate(body, c.GetHeader(cryptopay.SignatureHeader))
	if errors.Is(err, cryptopay.ErrInvalidSignature) {
		zap.L().Warn("Rejected webhook with bad signature", zap.String("remote", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	if err != nil {
		zap.L().Warn("Malformed webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if update.UpdateType != cryptopay.UpdateTypeInvoicePaid {
		zap.L().Debug("Ignoring webhook update", zap.String("update_type", update.UpdateType))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	invoice := update.Invoice()
	ctx := models.WithOperationContext(c.Request.Context(), models.OperationContext{Source: "webhook"})
	check, err := s.deposits.Settle(ctx, invoice)
	if errors.Is(err, store.ErrInvoiceNotFound) {
		zap.L().Warn("Webhook for unknown invoice", zap.Int64("invoice_id", invoice.InvoiceId))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	if err != nil {
		// Non-2xx makes the processor deliver the update again.
		zap.L().Error("Failed to settle invoice from webhook",
			zap.Int64("invoice_id", invoice.InvoiceId),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement failed"})
		return
	}

	zap.L().Info("Webhook settled invoice",
		zap.Int64("invoice_id", invoice.InvoiceId),
		zap.Int64("update_id", update.UpdateId),
		zap.Bool("already_paid", check.AlreadyPaid))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zap.L().Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
