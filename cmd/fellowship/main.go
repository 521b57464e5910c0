// Package main provides the fellowship binary: the community server and its
// maintenance commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/fellowship/internal/authstate"
	"github.com/dukerupert/fellowship/internal/config"
	"github.com/dukerupert/fellowship/internal/database"
	"github.com/dukerupert/fellowship/internal/logging"
	"github.com/dukerupert/fellowship/internal/push"
	"github.com/dukerupert/fellowship/internal/server"
	"github.com/dukerupert/fellowship/internal/service"
	"github.com/dukerupert/fellowship/internal/store"
)

var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

const cleanupInterval = 10 * time.Minute

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "fellowship",
		Short:         "Community events, chat, Q&A and Bible reading server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("FELLOWSHIP_CONFIG"), "Config file path (YAML)")

	load := func() (*config.Config, *slog.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
		return cfg, logger, nil
	}

	cmd.AddCommand(
		serveCmd(load),
		migrateCmd(load),
		userCmd(load),
		vapidCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("fellowship version %s (build: %s)\n", Version, BuildTime)
			},
		},
	)
	return cmd
}

type loader func() (*config.Config, *slog.Logger, error)

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if n, err := store.NewUserStore(db).Count(); err == nil && n == 0 {
		logger.Info("no users yet; the first account registered becomes admin")
	}

	srv, err := server.New(cfg, db, logger)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("fellowship listening", "addr", httpServer.Addr, "version", Version,
			"push", cfg.PushEnabled(), "spotify", cfg.SpotifyEnabled())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				cleanup(srv, logger)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func cleanup(srv *server.Server, logger *slog.Logger) {
	n, err := srv.SessionStore().DeleteExpired()
	if err != nil {
		logger.Error("delete expired sessions", "error", err)
	}
	limits := srv.RateLimiter().Cleanup()
	srv.Toasts().Sweep()
	logger.Debug("cleanup", "sessions_removed", n, "rate_limit_entries_removed", limits)
}

func migrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			// Open migrates.
			db, err := database.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			v, err := database.Version(db)
			if err != nil {
				return err
			}
			logger.Info("database migrated", "path", cfg.DBPath, "version", v)
			return nil
		},
	}
}

func userCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set-role <user-id> <admin|leader|user>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			accounts := service.NewAccountService(db, store.NewSessionStore(db, cfg.Session.TTL), authstate.NewBroker(logger), logger)
			u, err := accounts.ChangeRole(id, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%s (%d) is now %s\n", u.Email, u.ID, u.Role)
			return nil
		},
	})
	return cmd
}

func vapidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair for web push",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Printf("FELLOWSHIP_VAPID_PUBLIC_KEY=%s\nFELLOWSHIP_VAPID_PRIVATE_KEY=%s\n", pub, priv)
			return nil
		},
	}
}
