package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-storefront/internal/config"
	"github.com/georgemunganga/printa-storefront/internal/logging"
	"github.com/georgemunganga/printa-storefront/internal/modules/auth"
	"github.com/georgemunganga/printa-storefront/internal/modules/cart"
	"github.com/georgemunganga/printa-storefront/internal/modules/catalog"
	"github.com/georgemunganga/printa-storefront/internal/modules/order"
	"github.com/georgemunganga/printa-storefront/internal/modules/payment"
	"github.com/georgemunganga/printa-storefront/internal/modules/storefront"
	"github.com/georgemunganga/printa-storefront/internal/modules/user"
	"github.com/georgemunganga/printa-storefront/internal/modules/vendor"
	"github.com/georgemunganga/printa-storefront/internal/notify"
	"github.com/georgemunganga/printa-storefront/internal/remote"
)

var (
	envFile string
	port    int
)

var rootCmd = &cobra.Command{
	Use:   "printa-storefront",
	Short: "Session-scoped storefront API in front of the Printa marketplace",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storefront HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&envFile, "env", ".env", "env file to load before reading the environment")
	serveCmd.Flags().IntVar(&port, "port", 0, "listen port (overrides APP_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Port = port
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Upstream ────────────────────────────────────────────
	endpoints, err := remote.LoadEndpoints(cfg.EndpointsFile)
	if err != nil {
		return err
	}
	base := remote.New(cfg.UpstreamBaseURL, endpoints, cfg.UpstreamTimeout, logger)

	// ── Cart persistence ────────────────────────────────────
	carts := cart.NewMemoryRepository()
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		if err := cart.EnsureSchema(ctx, db); err != nil {
			return err
		}
		carts = cart.NewPostgresRepository(db, cart.NewSealer(cfg.CartSealKey))
		logger.Info("saved carts stored in postgres")
	}

	// ── Notifications ───────────────────────────────────────
	notifiers := []notify.Notifier{notify.Log{Logger: logger}}
	if cfg.AMQPURL != "" {
		broker, err := notify.DialBroker(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		defer broker.Close()
		notifiers = append(notifiers, broker)
		logger.Info("publishing notices", zap.String("queue", cfg.AMQPQueue))
	}
	notifier := notify.Multi{Notifiers: notifiers, Logger: logger}

	// ── Sessions ────────────────────────────────────────────
	registry := storefront.NewRegistry(base, notifier, storefront.DefaultIdleTimeout, logger)
	go registry.Run(ctx, time.Minute)
	issuer := auth.NewIssuer(cfg.SessionSecret, cfg.SessionTTL)
	secure := cfg.CookieSecure

	vendors := vendor.NewService()
	storefrontService := storefront.NewService(storefront.Deps{
		Catalog:  catalog.NewService(logger),
		Vendors:  vendors,
		Follower: vendor.NewFollower(vendors, logger, vendor.DefaultReconcileParallelism),
		Users:    user.NewService(),
		Carts:    carts,
		Logger:   logger,
	})

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(logging.Middleware(logger))
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key"},
	}).Handler)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	router.Group(func(r chi.Router) {
		r.Use(storefront.SessionMiddleware(registry, issuer, secure, logger))
		storefront.NewHandler(storefrontService, issuer, secure, logger).RegisterRoutes(r)
		order.NewHandler(order.NewService()).RegisterRoutes(r)
		payment.NewHandler(payment.NewService()).RegisterRoutes(r)
	})

	// ── Start Server ─────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("storefront API starting", zap.Int("port", cfg.Port), zap.String("upstream", cfg.UpstreamBaseURL))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

