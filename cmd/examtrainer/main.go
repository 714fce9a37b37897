package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"examtrainer/internal/handler"
	appI18n "examtrainer/internal/i18n"
	"examtrainer/internal/llm"
	"examtrainer/internal/model"
	"examtrainer/internal/store"
)

func main() {
	// Local .env files hold the OpenAI key in development; missing file
	// is not an error.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examtrainer",
		Short: "Exam practice web app with AI feedback",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam trainer",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "examens.db", "SQLite database path")
	f.String("data-dir", "data", "Directory with <subject>_<level>.json question files")
	f.String("assets-dir", "assets", "Directory with question images")
	f.String("openai-key", "", "OpenAI API key (empty disables AI feedback)")
	f.String("openai-url", "", "OpenAI-compatible API base URL (empty uses the default)")
	f.String("openai-model", "gpt-4o-mini", "Model name for feedback and tutoring")
	f.Duration("llm-timeout", 30*time.Second, "Timeout per model call")
	f.StringP("lang", "l", "nl", "UI language (nl, en)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Reload the question bank from JSON files and exit",
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "examens.db", "SQLite database path")
	f.String("data-dir", "data", "Directory with <subject>_<level>.json question files")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMTRAINER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examtrainer")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examtrainer")
	v.AddConfigPath("/etc/examtrainer")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Reload the question bank on every start so edited files win over
	// stale rows.
	dataDir := v.GetString("data-dir")
	count, err := db.ImportQuestionDir(dataDir)
	if err != nil {
		return fmt.Errorf("import questions: %w", err)
	}
	slog.Info("question bank loaded", "dir", dataDir, "count", count)

	users, err := db.UserCount()
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	slog.Info("database opened", "path", v.GetString("db"), "users", users)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	llmClient := llm.New(
		v.GetString("openai-url"),
		v.GetString("openai-key"),
		v.GetString("openai-model"),
		v.GetDuration("llm-timeout"),
	)
	if llmClient.Enabled() {
		if err := llmClient.Ping(context.Background()); err != nil {
			slog.Warn("model endpoint not reachable, continuing with fallback feedback", "error", err)
		} else {
			slog.Info("model endpoint OK", "model", v.GetString("openai-model"))
		}
	} else {
		slog.Info("no API key set, AI feedback disabled")
	}

	cfg := model.AppConfig{
		DataDir:       dataDir,
		AssetsDir:     v.GetString("assets-dir"),
		SecureCookies: v.GetBool("secure-cookies"),
	}

	h := handler.New(db, llmClient, cfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db", v.GetString("db"),
		"data_dir", dataDir,
		"lang", lang,
		"ai_feedback", llmClient.Enabled(),
	)
	return http.ListenAndServe(addr, r)
}

func runImport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	count, err := db.ImportQuestionDir(v.GetString("data-dir"))
	if err != nil {
		return fmt.Errorf("import questions: %w", err)
	}

	fmt.Printf("imported %d questions\n", count)
	return nil
}
