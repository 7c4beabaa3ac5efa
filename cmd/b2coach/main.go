package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/b2coach/internal/content"
	"github.com/pavelanni/b2coach/internal/handler"
	appI18n "github.com/pavelanni/b2coach/internal/i18n"
	"github.com/pavelanni/b2coach/internal/llm"
	"github.com/pavelanni/b2coach/internal/llm/prompts"
	"github.com/pavelanni/b2coach/internal/model"
	"github.com/pavelanni/b2coach/internal/session"
	"github.com/pavelanni/b2coach/internal/token"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "b2coach",
		Short: "Stateless B2 English grammar and writing practice service",
	}

	serve := serveCmd()
	root.AddCommand(serve, inspectCmd(), keygenCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `b2coach --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("app-secret", "", "Secret the submission token key is derived from (or set APP_SECRET), at least 16 characters")
	f.String("llm-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for LLM (or set OPENAI_API_KEY); empty means demo mode")
	f.String("llm-model", "gpt-4o-mini", "LLM model name (or set OPENAI_MODEL)")
	f.Bool("demo-mode", false, "Serve canned content instead of calling the LLM (or set DEMO_MODE=true)")
	f.String("prompt-variant", string(prompts.PromptStandard), "Writing assessment prompt variant (strict, standard, lenient)")
	f.StringP("lang", "l", "en", "Default language for messages (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /b2)")
	f.Duration("token-ttl", session.DefaultTTL, "Submission token lifetime advertised in expires_at")
	f.Bool("enforce-expiry", false, "Reject submission tokens older than token-ttl")
	f.Float64("rate-limit", 1, "Generator requests per second per client (0 disables)")
	f.Int("rate-burst", 5, "Generator request burst per client")
	f.Bool("trust-proxy", false, "Take client addresses from X-Forwarded-For/X-Real-IP (only behind a trusted proxy)")
	f.StringSlice("cors-origins", nil, "Allowed CORS origins (repeatable, empty disables CORS)")
	addLogFlags(cmd)
	return cmd
}

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [token]",
		Short: "Decrypt a submission token and print its payload as JSON",
		Long:  "Decrypt a submission token with the configured secret and print the sealed payload. Reads the token from stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInspect,
	}
	f := cmd.Flags()
	f.String("app-secret", "", "Secret the token key is derived from (or set APP_SECRET)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func keygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Print a random secret suitable for --app-secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := newSecret(rand.Reader)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), secret)
			return err
		},
	}
	return cmd
}

func addLogFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "text", "Log format (text, json)")
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

// envAliases maps flags to the bare environment names accepted alongside
// the B2COACH_ prefixed ones.
var envAliases = map[string]string{
	"app-secret": "APP_SECRET",
	"llm-key":    "OPENAI_API_KEY",
	"llm-model":  "OPENAI_MODEL",
	"demo-mode":  "DEMO_MODE",
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("B2COACH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		if cmd.Flags().Lookup(key) == nil {
			continue
		}
		prefixed := "B2COACH_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		_ = v.BindEnv(key, prefixed, alias)
	}

	v.SetConfigName("b2coach")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/b2coach")
	v.AddConfigPath("/etc/b2coach")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// normalizeBasePath returns "" or a path with a leading and no trailing slash.
func normalizeBasePath(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	codec, err := token.New(v.GetString("app-secret"))
	if err != nil {
		return fmt.Errorf("submission tokens: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := model.ServiceConfig{
		BasePath:      normalizeBasePath(v.GetString("base-path")),
		DemoMode:      v.GetBool("demo-mode") || v.GetString("llm-key") == "",
		TokenTTL:      v.GetDuration("token-ttl"),
		EnforceExpiry: v.GetBool("enforce-expiry"),
		Lang:          lang,
	}

	gen, err := newGenerator(ctx, v, cfg)
	if err != nil {
		return err
	}

	packager := session.New(codec, cfg.TokenTTL, session.WithEnforceExpiry(cfg.EnforceExpiry))

	var opts []handler.Option
	if rps := v.GetFloat64("rate-limit"); rps > 0 {
		opts = append(opts, handler.WithRateLimiter(handler.NewRateLimiter(ctx, rps, v.GetInt("rate-burst"))))
	}
	h := handler.New(packager, gen, cfg, opts...)

	r := newRouter(h, routerConfig{
		basePath:    cfg.BasePath,
		lang:        lang,
		trustProxy:  v.GetBool("trust-proxy"),
		corsOrigins: v.GetStringSlice("cors-origins"),
	})

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	mode := "ai"
	if cfg.DemoMode {
		mode = "demo"
	}
	slog.Info("starting server",
		"addr", addr,
		"mode", mode,
		"lang", lang,
		"base_path", cfg.BasePath,
		"token_ttl", cfg.TokenTTL,
		"enforce_expiry", cfg.EnforceExpiry,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type routerConfig struct {
	basePath    string
	lang        string
	trustProxy  bool
	corsOrigins []string
}

// newRouter mounts h behind the shared middleware stack. Forwarded client
// addresses are honored only when trustProxy is set.
func newRouter(h *handler.Handler, rc routerConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if rc.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(rc.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: rc.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(appI18n.Middleware(rc.lang))

	if rc.basePath != "" {
		r.Route(rc.basePath, h.Routes)
	} else {
		h.Routes(r)
	}
	return r
}

// newGenerator returns the canned generator in demo mode and a checked LLM
// client otherwise.
func newGenerator(ctx context.Context, v *viper.Viper, cfg model.ServiceConfig) (content.Generator, error) {
	if cfg.DemoMode {
		loc := appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(cfg.Lang))
		demo := content.NewDemo()
		demo.Title = appI18n.T(loc, "DemoGrammarTitle")
		demo.Instructions = appI18n.T(loc, "DemoGrammarInstructions")
		slog.Info("demo mode: serving canned content")
		return demo, nil
	}

	variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", variant)
		variant = string(prompts.PromptStandard)
	}
	client := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		llm.WithVariant(prompts.PromptVariant(variant)),
	)

	pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", client.Model(), "prompt_variant", variant)
	return client, nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	codec, err := token.New(v.GetString("app-secret"))
	if err != nil {
		return fmt.Errorf("submission tokens: %w", err)
	}

	var tok string
	if len(args) == 1 {
		tok = args[0]
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		tok = string(data)
	}

	raw, err := codec.Open(strings.TrimSpace(tok))
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	pretty.WriteByte('\n')

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(pretty.Bytes()); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// newSecret returns 32 random bytes encoded as unpadded base64url.
func newSecret(r io.Reader) (string, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
