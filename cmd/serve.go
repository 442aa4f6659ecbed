package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orvion-sh/orvion-quick-start/app/backend"
	"github.com/orvion-sh/orvion-quick-start/app/controller"
	"github.com/orvion-sh/orvion-quick-start/app/entity"
	"github.com/orvion-sh/orvion-quick-start/app/gate"
	"github.com/orvion-sh/orvion-quick-start/app/interceptor"
	"github.com/orvion-sh/orvion-quick-start/app/registry"
	"github.com/orvion-sh/orvion-quick-start/app/repository"
	"github.com/orvion-sh/orvion-quick-start/app/service"
	"github.com/orvion-sh/orvion-quick-start/app/types"
	"github.com/orvion-sh/orvion-quick-start/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the demo HTTP server",
	Long:  "Start the HTTP server with payment-gated demo routes and backend proxy endpoints.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, stack, cleanup := mustCreatePaymentStack()
	defer cleanup()

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	verifyAPIKey(startupCtx, stack.backend)
	// Sync must finish (or fail non-fatally) before protected routes take
	// traffic; failures degrade to lazy per-route registration.
	stack.interceptor.SyncRoutes(startupCtx)
	cancel()

	e := setupHTTPServer(cfg, stack)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	logrus.Info("Server stopped")
}

type paymentStack struct {
	backend     *backend.Client
	registry    *registry.Registry
	interceptor *interceptor.Interceptor
	controller  *controller.PaymentController
	events      *repository.PaymentEventRepository
}

func mustCreatePaymentStack() (*config.Config, *paymentStack, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	if cfg.Orvion.APIKey == "" {
		logrus.Warn("No ORVION_API_KEY set, backend calls will be unauthenticated")
	}

	backendClient := backend.New(backend.Config{
		APIKey:         cfg.Orvion.APIKey,
		BaseURL:        cfg.Orvion.BaseURL,
		HealthTimeout:  cfg.Orvion.HealthTimeout,
		PaymentTimeout: cfg.Orvion.PaymentTimeout,
	})

	eventRepo, cleanup := createEventRepository(cfg)

	chargeRegistry := registry.New(backendClient)
	paymentGate := gate.New(backendClient, gate.Config{
		CheckoutBaseURL: cfg.Checkout.BaseURL,
		ReturnURL:       cfg.Checkout.ReturnURL,
	})
	// Avoid handing a typed nil to the interface-typed recorder params.
	var routeInterceptor *interceptor.Interceptor
	var paymentService *service.PaymentService
	if eventRepo != nil {
		routeInterceptor = interceptor.New(chargeRegistry, paymentGate, eventRepo)
		paymentService = service.NewPaymentService(backendClient, eventRepo)
	} else {
		routeInterceptor = interceptor.New(chargeRegistry, paymentGate, nil)
		paymentService = service.NewPaymentService(backendClient, nil)
	}
	paymentController := controller.NewPaymentController(paymentService, types.ConfigResponse{
		BackendURL: cfg.Orvion.BaseURL,
		Mode:       "demo_playground",
		Version:    "1.0.0",
	})

	stack := &paymentStack{
		backend:     backendClient,
		registry:    chargeRegistry,
		interceptor: routeInterceptor,
		controller:  paymentController,
		events:      eventRepo,
	}
	return cfg, stack, cleanup
}

// createEventRepository opens the audit store when a DSN is configured.
// Without one, payment events are not persisted and the server still runs.
func createEventRepository(cfg *config.Config) (*repository.PaymentEventRepository, func()) {
	if cfg.MySQL.DSN == "" {
		logrus.Info("No MYSQL_DSN set, payment-event audit trail disabled")
		return nil, func() {}
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}
	return repository.NewPaymentEventRepository(db), cleanup
}

func verifyAPIKey(ctx context.Context, backendClient *backend.Client) {
	health, err := backendClient.HealthCheck(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Backend health check failed")
		return
	}
	if !health.APIKeyValid {
		logrus.Warn("API key verification failed")
		return
	}
	logrus.WithField("organization_id", health.OrganizationID).Info("API key verified")
}

func setupHTTPServer(cfg *config.Config, stack *paymentStack) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", stack.controller.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.GET("/config", stack.controller.GetConfig)
	api.GET("/test-connection", stack.controller.TestConnection)
	api.GET("/routes", stack.controller.ListRoutes)
	api.GET("/checkout", stack.controller.Checkout)

	api.POST("/charges", stack.controller.CreateCharge)
	api.POST("/charges/verify", stack.controller.VerifyCharge)

	api.POST("/facilitator/monitor", stack.controller.RegisterMonitor)
	api.GET("/facilitator/monitor/:id", stack.controller.MonitorStatus)
	api.POST("/facilitator/confirm", stack.controller.ConfirmPayment)

	api.GET("/demo/charges/:id/ui-state", stack.controller.ChargeUIState)

	// Payment-gated demo routes.
	api.GET("/premium", stack.controller.PremiumContent, stack.interceptor.Require(entity.Route{
		Method:      http.MethodGet,
		Pattern:     "/api/premium",
		Amount:      cfg.Routes.PremiumAmount,
		Currency:    cfg.Routes.DefaultCurrency,
		Name:        "Premium Article",
		Description: "Access to premium article content",
		Mode:        entity.ChallengeModeHeader,
	}))
	api.GET("/flow", stack.controller.FlowContent, stack.interceptor.Require(entity.Route{
		Method:      http.MethodGet,
		Pattern:     "/api/flow",
		Amount:      cfg.Routes.FlowAmount,
		Currency:    cfg.Routes.DefaultCurrency,
		Name:        "Flow-Routed Content",
		Description: "Access to content behind hosted checkout",
		Mode:        entity.ChallengeModeRedirect,
		ReturnURL:   cfg.Checkout.ReturnURL,
	}))

	return e
}
