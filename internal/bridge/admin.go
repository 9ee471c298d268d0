package bridge

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kkirby/rax25kb/internal/config"
	"github.com/kkirby/rax25kb/internal/observability"
)

// AdminServer exposes health, link status, and Prometheus metrics
// over HTTP. It is read-only; the bridge takes no commands from it.
type AdminServer struct {
	cfg     config.AdminConfig
	sup     *Supervisor
	log     zerolog.Logger
	started time.Time
}

func NewAdminServer(cfg config.AdminConfig, sup *Supervisor, logger zerolog.Logger) *AdminServer {
	return &AdminServer{
		cfg:     cfg,
		sup:     sup,
		log:     logger.With().Str("component", "admin").Logger(),
		started: time.Now(),
	}
}

func (s *AdminServer) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(s.log))
	r.Use(observability.RequestMetricsMiddleware())

	if len(s.cfg.CorsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: s.cfg.CorsOrigins,
			AllowMethods: []string{http.MethodGet},
			AllowHeaders: []string{"Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.started).String(),
		})
	})
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"links": s.sup.Status(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Run serves until ctx is done, then drains with a short shutdown
// grace period.
func (s *AdminServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s.router(),
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("listen", s.cfg.Listen).Msg("admin server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
