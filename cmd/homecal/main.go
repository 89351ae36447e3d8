package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/homecal/internal/auth"
	"github.com/dukerupert/homecal/internal/config"
	"github.com/dukerupert/homecal/internal/database"
	"github.com/dukerupert/homecal/internal/jobs"
	"github.com/dukerupert/homecal/internal/logging"
	"github.com/dukerupert/homecal/internal/push"
	"github.com/dukerupert/homecal/internal/server"
)

const usage = `usage: homecal [-config file] <command> [args]

commands:
  serve                          run the HTTP API and periodic jobs (default)
  run-job <name>                 run one periodic job now and exit
  token -user U -household H     print a bearer token
  vapid-keys                     print a new VAPID key pair
`

func main() {
	fs := flag.NewFlagSet("homecal", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("HOMECAL_CONFIG"), "path to YAML config file")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	fs.Parse(os.Args[1:])

	cmd, args := "serve", fs.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	if cmd == "vapid-keys" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate keys:", err)
			os.Exit(1)
		}
		fmt.Printf("HOMECAL_VAPID_PUBLIC_KEY=%s\nHOMECAL_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load(*configPath, os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	switch cmd {
	case "serve":
		err = serve(cfg, logger)
	case "run-job":
		err = runJob(cfg, logger, args)
	case "token":
		err = issueToken(cfg, args)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	srv := server.New(db, cfg, logger)

	runner := jobs.NewRunner(cfg.Location(), cfg.Jobs.Timeout, logger.With("component", "jobs"))
	if err := srv.RegisterJobs(runner); err != nil {
		return err
	}
	runner.Start(context.Background())

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("homecal starting", "addr", httpServer.Addr, "timezone", cfg.Timezone)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		runner.Stop()
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down")
	runner.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runJob(cfg *config.Config, logger *slog.Logger, args []string) error {
	if len(args) != 1 {
		return errors.New("run-job takes exactly one job name")
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	runner := jobs.NewRunner(cfg.Location(), cfg.Jobs.Timeout, logger.With("component", "jobs"))
	if err := server.New(db, cfg, logger).RegisterJobs(runner); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := runner.RunOnce(ctx, args[0]); err != nil {
		return err
	}
	slog.Info("job complete", "job", args[0])
	return nil
}

func issueToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	user := fs.String("user", "", "user id")
	household := fs.String("household", "", "household id")
	ttl := fs.Duration("ttl", 0, "token lifetime (default 30 days)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" || *household == "" {
		return errors.New("token requires -user and -household")
	}

	tok, err := auth.NewTokens(cfg.JWTSecret, *ttl).Issue(*user, *household)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
