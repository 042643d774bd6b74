package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erazemk/odpadki/internal/api"
	"github.com/erazemk/odpadki/internal/auth"
	"github.com/erazemk/odpadki/internal/config"
	"github.com/erazemk/odpadki/internal/db"
	"github.com/erazemk/odpadki/internal/events"
	"github.com/erazemk/odpadki/internal/lifecycle"
	"github.com/erazemk/odpadki/internal/media"
	"github.com/erazemk/odpadki/internal/model"
	"github.com/erazemk/odpadki/internal/oracle"
	"github.com/erazemk/odpadki/internal/store"
)

const usage = `Usage: odpadki [flags]

Flags:
  -c, -config <path>      YAML config file (default: none, built-in defaults)
  -d, -db <path>          SQLite database path (default: odpadki.db)
  -a, -addr <host:port>   listen address (default: :8080)
  -e, -email <address>    admin email on first run (default: admin@odpadki.local)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

Environment:
  GEMINI_API_KEY          API key for the classification and verification model
  ODPADKI_JWT_SECRET      token signing secret (default: generated and stored in the database)
`

type flags struct {
	configPath string
	dbPath     string
	addr       string
	adminEmail string
	logPath    string
}

func parseFlags(args []string) (*flags, map[string]bool, error) {
	fs := flag.NewFlagSet("odpadki", flag.ContinueOnError)
	f := &flags{}

	fs.StringVar(&f.configPath, "config", "", "")
	fs.StringVar(&f.configPath, "c", "", "")
	fs.StringVar(&f.dbPath, "db", "", "")
	fs.StringVar(&f.dbPath, "d", "", "")
	fs.StringVar(&f.addr, "addr", "", "")
	fs.StringVar(&f.addr, "a", "", "")
	fs.StringVar(&f.adminEmail, "email", "admin@odpadki.local", "")
	fs.StringVar(&f.adminEmail, "e", "admin@odpadki.local", "")
	fs.StringVar(&f.logPath, "log", "", "")
	fs.StringVar(&f.logPath, "l", "", "")

	fs.Usage = func() { fmt.Fprint(os.Stdout, usage) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

// loadConfig merges defaults, the config file, flags and environment, in
// increasing order of precedence.
func loadConfig(f *flags, set map[string]bool, getenv func(string) string) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if set["db"] || set["d"] {
		cfg.Database.Path = f.dbPath
	}
	if set["addr"] || set["a"] {
		cfg.Server.Addr = f.addr
	}
	if set["log"] || set["l"] {
		cfg.Log.File = f.logPath
	}
	cfg.ApplyEnv(getenv)
	return cfg, cfg.Validate()
}

func main() {
	f, set, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(f, set, os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogger(os.Stdout, os.Stderr, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg, f.adminEmail); err != nil {
		slog.Error("fatal", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, adminEmail string) error {
	ctx := context.Background()

	// Auto-init on first run.
	if _, err := os.Stat(cfg.Database.Path); os.IsNotExist(err) {
		password, err := initDatabase(cfg.Database.Path, adminEmail)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		printInitResult(cfg.Database.Path, adminEmail, password)
		fmt.Println()
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.Database.Path)

	jwtSecret := cfg.JWT.Secret
	if jwtSecret == "" {
		jwtSecret, err = store.GetJWTSecret(ctx, database)
		if err != nil {
			return err
		}
	}

	if cfg.Oracle.APIKey == "" {
		return errors.New("no oracle API key, set GEMINI_API_KEY or oracle.api_key")
	}
	genModel, err := oracle.NewGenAIModel(ctx, cfg.Oracle.APIKey, cfg.Oracle.Model)
	if err != nil {
		return err
	}
	slog.Info("oracle ready", "model", genModel.Name())

	videos, err := newMediaStore(ctx, cfg.Media, database)
	if err != nil {
		return err
	}
	slog.Info("media store ready", "backend", cfg.Media.Backend)

	hub := events.NewHub(slog.Default())
	orch := lifecycle.New(database,
		&oracle.Classifier{Model: genModel},
		&oracle.Verifier{Model: genModel},
		videos, hub, slog.Default())
	orch.VerifyTimeout = cfg.Oracle.VerifyTimeout

	apiRouter := api.NewRouter(api.Deps{
		DB:           database,
		JWTSecret:    jwtSecret,
		Orchestrator: orch,
		Media:        videos,
		Hub:          hub,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.LoggingMiddleware(apiRouter),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	stop, cancel := context.WithCancel(ctx)
	defer cancel()
	go purgeRevokedTokens(stop, database, time.Hour)

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

func newMediaStore(ctx context.Context, cfg config.MediaConfig, database *sql.DB) (media.Store, error) {
	switch cfg.Backend {
	case config.MediaS3:
		return media.NewS3Store(ctx, media.S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Prefix:   cfg.S3Prefix,
			Endpoint: cfg.S3Endpoint,
		})
	default:
		return media.NewDBStore(database), nil
	}
}

// purgeRevokedTokens periodically drops revocations of expired tokens.
func purgeRevokedTokens(ctx context.Context, database *sql.DB, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpiredTokens(ctx, database, time.Now())
			if err != nil {
				slog.Error("failed to purge revoked tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged revoked tokens", "count", n)
			}
		}
	}
}

// initDatabase creates a new database and its admin account, returning the
// generated admin password.
func initDatabase(path, adminEmail string) (string, error) {
	if err := model.ValidateEmail(adminEmail); err != nil {
		return "", err
	}

	database, err := db.Open(path)
	if err != nil {
		return "", err
	}
	defer database.Close()

	fail := func(err error) (string, error) {
		database.Close()
		os.Remove(path)
		return "", err
	}

	if err := db.Migrate(database); err != nil {
		return fail(err)
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail(fmt.Errorf("generating password: %w", err))
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fail(err)
	}

	if _, err := store.CreateUser(context.Background(), database, "Admin", adminEmail, hash, model.RoleAdmin); err != nil {
		return fail(fmt.Errorf("creating admin user: %w", err))
	}

	return password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, email, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
