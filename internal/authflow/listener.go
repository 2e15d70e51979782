package authflow

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bankwatch/bankwatch/internal/config"
	"github.com/bankwatch/bankwatch/internal/errors"
	"github.com/bankwatch/bankwatch/internal/logging"
	"github.com/bankwatch/bankwatch/internal/models"
	"github.com/bankwatch/bankwatch/internal/token"
)

// Listener serves the one-time OAuth redirect callback. It exchanges
// the authorization code for a credential via the token manager, which
// also persists it.
type Listener struct {
	manager    *token.Manager
	cfg        config.OAuthConfig
	logger     *logging.Logger
	router     *gin.Engine
	httpServer *http.Server
	done       chan *models.Credential
}

// NewListener creates a callback listener bound to the configured
// listen address.
func NewListener(manager *token.Manager, cfg config.OAuthConfig, logger *logging.Logger) *Listener {
	gin.SetMode(gin.ReleaseMode)

	l := &Listener{
		manager: manager,
		cfg:     cfg,
		logger:  logger,
		router:  gin.New(),
		done:    make(chan *models.Credential, 1),
	}

	l.router.Use(gin.Recovery())
	l.router.GET("/callback", l.handleCallback)

	return l
}

// Router returns the gin router for testing purposes
func (l *Listener) Router() *gin.Engine {
	return l.router
}

// Done delivers the credential obtained from a completed callback.
func (l *Listener) Done() <-chan *models.Credential {
	return l.done
}

// Start blocks serving the callback endpoint until Shutdown.
func (l *Listener) Start() error {
	l.httpServer = &http.Server{
		Addr:              l.cfg.ListenAddr,
		Handler:           l.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	l.logger.Info("starting authorization callback listener", "addr", l.cfg.ListenAddr)
	if err := l.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return &errors.ErrServerStart{Err: err}
	}
	return nil
}

// Shutdown stops the callback listener.
func (l *Listener) Shutdown(ctx context.Context) error {
	if l.httpServer == nil {
		return nil
	}
	return l.httpServer.Shutdown(ctx)
}

func (l *Listener) handleCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.String(http.StatusBadRequest, "Error: No 'code' parameter in callback.")
		return
	}

	l.logger.Info("authorization code received")

	cred, err := l.manager.Exchange(c.Request.Context(), code)
	if err != nil {
		l.logger.Error("failed to exchange authorization code", "error", err.Error())
		c.String(http.StatusInternalServerError, "Error exchanging code for token")
		return
	}

	select {
	case l.done <- cred:
	default:
	}

	c.String(http.StatusOK, "Access token saved successfully. You can close this window.")
}
