package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/emilythestrangee/wikicomments/backend/internal/comments"
	"github.com/emilythestrangee/wikicomments/backend/internal/config"
	"github.com/emilythestrangee/wikicomments/backend/internal/database"
	"github.com/emilythestrangee/wikicomments/backend/internal/forms"
	"github.com/emilythestrangee/wikicomments/backend/internal/handlers"
	"github.com/emilythestrangee/wikicomments/backend/internal/listeners"
	"github.com/emilythestrangee/wikicomments/backend/internal/server"
	"github.com/emilythestrangee/wikicomments/backend/internal/signals"
	"github.com/emilythestrangee/wikicomments/backend/internal/targets"
	"github.com/emilythestrangee/wikicomments/backend/internal/templates"
)

func newServeCmd() *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  "Migrate the database and serve the comment endpoints until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, skipMigrate)
		},
	}

	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not auto-migrate the schema on startup")

	return cmd
}

func runServe(ctx context.Context, skipMigrate bool) error {
	cfg, logger, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer closeDB(logger, db)

	if !skipMigrate {
		if err := db.Migrate(); err != nil {
			return err
		}
	}

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := targets.NewRegistry()
	if err := database.RegisterTargets(reg, db.GetDB()); err != nil {
		return fmt.Errorf("registering comment targets: %w", err)
	}

	bus := signals.NewBus()
	cleanup, err := wireListeners(ctx, cfg, bus, logger)
	defer cleanup()
	if err != nil {
		return err
	}

	svc := comments.NewService(
		database.NewCommentStore(db.GetDB()),
		reg,
		forms.NewSigner(cfg.CommentSecret),
		bus,
		comments.Options{FrontPage: "/"},
	)

	tmpl, err := templates.Load()
	if err != nil {
		return err
	}

	jwtSecret := []byte(cfg.JWTSecret)
	h := handlers.NewHandler(svc, database.NewUserStore(db.GetDB()), handlers.Config{
		JWTSecret:     jwtSecret,
		TokenTTL:      cfg.TokenTTL,
		SecureCookies: !cfg.IsDev(),
	}, logger)

	srv := server.NewServer(cfg.HTTPServer, server.Deps{
		DB:           db,
		Handler:      h,
		Templates:    tmpl,
		JWTSecret:    jwtSecret,
		ContentTypes: reg.Types(),
		Logger:       logger,
	})
	return srv.Run(ctx)
}

// wireListeners registers the signal receivers for the configured backends.
// The returned cleanup func is always safe to call.
func wireListeners(ctx context.Context, cfg *config.Config, bus *signals.Bus, logger *slog.Logger) (func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { rdb.Close() })

		if err := rdb.Ping(ctx).Err(); err != nil {
			return cleanup, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		throttle := listeners.NewThrottle(listeners.NewRedisCounter(rdb), cfg.ThrottleLimit, cfg.ThrottleWindow, logger)
		bus.OnWillBePosted("throttle", throttle.WillBePosted)
		logger.Info("comment throttle enabled", "limit", cfg.ThrottleLimit, "window", cfg.ThrottleWindow.String())
	}

	if cfg.AMQP.URL != "" {
		conn, err := amqp.Dial(cfg.AMQP.URL)
		if err != nil {
			return cleanup, fmt.Errorf("connecting to amqp: %w", err)
		}
		closers = append(closers, func() { conn.Close() })

		ch, err := conn.Channel()
		if err != nil {
			return cleanup, fmt.Errorf("opening amqp channel: %w", err)
		}
		closers = append(closers, func() { ch.Close() })

		if err := listeners.DeclareExchange(ch, cfg.Exchange); err != nil {
			return cleanup, fmt.Errorf("declaring exchange %s: %w", cfg.Exchange, err)
		}
		bus.OnWasPosted("publisher", listeners.NewPublisher(ch, cfg.Exchange, logger).WasPosted)
		logger.Info("comment events enabled", "exchange", cfg.Exchange)
	}

	bus.OnWasPosted("audit", listeners.AuditLog(logger))
	return cleanup, nil
}
