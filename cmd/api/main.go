package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/account"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/auth"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/booking"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/config"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/data"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/db"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/listing"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/logging"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/media"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/middleware"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/notify"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/ratelimit"
	"github.com/PaulBabatuyi/wildwelcome-api/internal/review"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName     = "wildwelcome-api"
	shutdownTimeout = 15 * time.Second
	bookingLockTTL  = 30 * time.Second
	notifyTimeout   = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Init(serviceName, cfg.Server.Env)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := dbClient.Close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("close database")
		}
	}()
	if err := dbClient.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	users := data.NewUsersStore(dbClient.UsersCollection())
	properties := data.NewPropertiesStore(dbClient.PropertiesCollection())
	bookings := data.NewBookingsStore(dbClient.BookingsCollection())
	reviews := data.NewReviewsStore(dbClient.ReviewsCollection())
	locks := data.NewBookingLocks(dbClient.BookingLocksCollection(), bookingLockTTL)

	tokens, err := newTokenManager(cfg.JWT)
	if err != nil {
		return err
	}

	var limiter ratelimit.Limiter
	if cfg.Redis.URL != "" {
		rl, err := ratelimit.NewRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer func() { _ = rl.Close() }()
		limiter = rl
		log.Info().Msg("rate limiting backed by Redis")
	} else {
		mem := ratelimit.NewMemory(time.Hour, 5*time.Minute)
		defer mem.Stop()
		limiter = mem
	}
	guard := ratelimit.NewGuard(limiter, ratelimit.DefaultPolicies)

	var google account.IdentityVerifier
	if cfg.Google.ClientID != "" {
		v, err := auth.NewGoogleVerifier(ctx, cfg.Google.CertsURL, cfg.Google.ClientID)
		if err != nil {
			return fmt.Errorf("google sign-in: %w", err)
		}
		google = v
	}

	var images media.ImageHost
	if cfg.Cloudinary.Enabled() {
		c, err := media.NewCloudinary(cfg.Cloudinary)
		if err != nil {
			return fmt.Errorf("cloudinary: %w", err)
		}
		images = c
	} else {
		log.Warn().Msg("cloudinary not configured, image uploads disabled")
	}

	events := notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if events != nil {
		defer func() { _ = events.Close() }()
	}
	dispatcher := notify.NewDispatcher(cfg.Notify.Workers, cfg.Notify.QueueSize, notifyTimeout)
	notifier := notify.NewNotifier(dispatcher, notify.Options{
		Mailer:      notify.NewSMTPMailer(cfg.SMTP),
		SMS:         notify.NewGupshupSMS(cfg.SMS),
		Events:      events,
		FrontendURL: cfg.Server.FrontendURL,
	})

	accounts := account.NewService(account.Deps{
		Users:      users,
		Properties: properties,
		Bookings:   bookings,
		Tokens:     tokens,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Guard:      guard,
		Google:     google,
		Images:     images,
		Notifier:   notifier,
	})
	listings := listing.NewService(properties, bookings, images)
	bookingSvc := booking.NewService(bookings, properties, users, locks, notifier)
	reviewSvc := review.NewService(reviews, properties, cfg.AdminEmails)

	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, 20, time.Minute)
	defer limiterStore.Stop()

	srv := newServer(accounts, listings, bookingSvc, reviewSvc, dbClient)
	e := srv.routes(routeOptions{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Limiter:        limiterStore,
		BodyLimit:      "50M",
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var (
		probe     *healthProbe
		healthLis net.Listener
	)
	if cfg.Server.HealthGRPCPort != "" {
		healthLis, err = net.Listen("tcp", ":"+cfg.Server.HealthGRPCPort)
		if err != nil {
			return fmt.Errorf("listen health: %w", err)
		}
		probe = newHealthProbe(dbClient)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Str("env", cfg.Server.Env).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if probe != nil {
		g.Go(func() error {
			log.Info().Str("addr", healthLis.Addr().String()).Msg("gRPC health server listening")
			return probe.grpc.Serve(healthLis)
		})
		g.Go(func() error {
			probe.watch(gctx, pingInterval)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if probe != nil {
			probe.stop()
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http shutdown")
		}
		if err := dispatcher.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("notification queue not drained")
		}
		return nil
	})

	return g.Wait()
}

// newTokenManager prefers the rotating key set over the single secret.
func newTokenManager(cfg config.JWTConfig) (*auth.JWTManager, error) {
	var m *auth.JWTManager
	if len(cfg.Keys) > 0 {
		m = auth.NewJWTManagerFromKeys(cfg.Keys, cfg.ActiveKid, cfg.AccessTTL)
	} else {
		m = auth.NewJWTManager(cfg.Secret, cfg.AccessTTL)
	}
	if err := m.UseAlgorithm(cfg.Algorithm); err != nil {
		return nil, err
	}
	return m, nil
}
