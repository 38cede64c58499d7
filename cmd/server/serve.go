package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpctrl "restaurant-service/internal/controllers/http"
	mmysql "restaurant-service/internal/infra/mysql"
	"restaurant-service/internal/domain"
	"restaurant-service/internal/feed"
	"restaurant-service/internal/infra"
	"restaurant-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the live back-office feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.log

	if a.db != nil {
		if err := mmysql.Migrate(a.db); err != nil {
			return err
		}
	}

	payments := infra.NewPaystackClient(cfg.Paystack.BaseURL, cfg.Paystack.SecretKey, cfg.Paystack.Timeout)

	verification := services.NewVerificationService(a.gateway, payments, logger)
	verification.SetCurrency(cfg.Paystack.Currency)

	status := services.NewStatusService(a.gateway, domain.TransitionPolicy{Strict: cfg.Orders.StrictTransitions}, logger)
	tracking := services.NewTrackingService(a.gateway, cfg.Orders.DeliveryEstimate, logger)
	if a.cache != nil {
		status.SetCache(a.cache)
		tracking.SetCache(a.cache, cfg.Redis.TTL)
	}
	if a.audit != nil {
		verification.SetAudit(a.audit)
		status.SetAudit(a.audit)
	}

	session := feed.NewSession(a.gateway, logger, feed.Options{ActivitySize: cfg.Feed.ActivityWindow})
	if err := session.Start(ctx); err != nil {
		logger.Error("live feed not started, admin lists unavailable", zap.Error(err))
		session = nil
	} else {
		defer session.Teardown()
		status.SetView(session)
	}

	handler := httpctrl.NewHandler(httpctrl.Services{
		Verification: verification,
		Status:       status,
		Tracking:     tracking,
		Submissions:  services.NewSubmissionService(a.gateway, time.Local, logger),
		Admin:        services.NewAdminService(a.gateway, cfg.Feed.BadgeCap, logger),
	}, logger)
	handler.SetCallbackURL(cfg.Paystack.CallbackURL)
	if session != nil {
		handler.SetSession(session)
	}
	if a.audit != nil {
		handler.SetAudit(a.audit)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), httpctrl.RequestLogger(logger))
	handler.RegisterRoutes(r, httpctrl.RequireRole(cfg.Admin.RoleHeader, cfg.Admin.Role))

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting restaurant service", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
