package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/RichardoC/clawd-gateway/internal/api"
	"github.com/RichardoC/clawd-gateway/internal/auth"
	"github.com/RichardoC/clawd-gateway/internal/config"
	"github.com/RichardoC/clawd-gateway/internal/db"
	"github.com/RichardoC/clawd-gateway/internal/llm"
	"github.com/RichardoC/clawd-gateway/internal/metrics"
	"github.com/RichardoC/clawd-gateway/internal/models"
	"github.com/RichardoC/clawd-gateway/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           config.Name,
		Short:         "Conversation gateway in front of a chat completion API",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(v, cmd.Root()); err != nil {
				return err
			}
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			config.SetupEnv(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), v)
		},
	}

	root.PersistentFlags().String("db", config.DefaultDBPath, "path of the SQLite database file")
	root.PersistentFlags().String("port", config.DefaultPort, "port to listen on")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), v)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and status row, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(v)
		},
	})
	return root
}

// flagKeys maps persistent flags onto the viper keys they override.
var flagKeys = map[string]string{
	"db":   "DB_PATH",
	"port": "PORT",
}

// bindFlags binds the persistent flags of root into v. A flag only takes
// effect when set explicitly; env and defaults apply otherwise.
func bindFlags(v *viper.Viper, root *cobra.Command) error {
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, root.PersistentFlags().Lookup(flag)); err != nil {
			return fmt.Errorf("binding --%s to %s: %w", flag, key, err)
		}
	}
	return nil
}

func newLogger(level string, humanReadable bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if humanReadable {
		cfg = zap.NewDevelopmentConfig()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func migrate(v *viper.Viper) error {
	logger, err := newLogger(v.GetString("LOG_LEVEL"), v.GetBool("HUMAN_READABLE_LOGS"))
	if err != nil {
		return err
	}
	defer logger.Sync()

	dbPath := v.GetString("DB_PATH")
	database, err := db.New(dbPath, db.WithAgent(v.GetString("AGENT_ID")))
	if err != nil {
		logger.Error("failed to initialize database", zap.Error(err), zap.String("dbPath", dbPath))
		return err
	}
	logger.Info("database ready", zap.String("dbPath", dbPath))
	return database.Close()
}

func serve(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.HumanReadableLogs)
	if err != nil {
		return err
	}
	defer logger.Sync()

	database, err := db.New(cfg.DBPath, db.WithAgent(cfg.AgentID))
	if err != nil {
		logger.Error("failed to initialize database", zap.Error(err), zap.String("dbPath", cfg.DBPath))
		return err
	}
	defer database.Close()

	model, err := llm.NewModel(llm.ProviderConfig{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey(),
		BaseURL:  cfg.LLMBaseURL,
		Model:    cfg.DefaultModel,
	})
	if err != nil {
		logger.Error("failed to initialize LLM client", zap.Error(err), zap.String("provider", cfg.Provider))
		return err
	}

	m := metrics.New()
	if err := m.AddBuildInfo(config.Version, config.GoVersion); err != nil {
		logger.Warn("failed to register build info metric", zap.Error(err))
	}

	service := llm.New(database,
		llm.NewLangchainCompleter(model, cfg.MaxTokens, cfg.DefaultTemperature),
		llm.WithDefaults(llm.Defaults{
			Model:       cfg.DefaultModel,
			Temperature: models.Float64Ptr(cfg.DefaultTemperature),
		}),
		llm.WithAgent(cfg.AgentID),
		llm.WithLogger(logger),
		llm.WithMetrics(m),
	)

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	srv := server.NewServer(config.Name,
		cors.New(config.CorsConfig(cfg.AllowedOrigins, cfg.DebugCORS)),
		logger,
		m,
	)
	api.SetupRoutes(srv.Mux(),
		api.NewHandler(database, service, logger),
		api.NewChecksHandler(database, logger),
		auth.BearerAuth(verifier, logger),
		m.Handler(),
	)

	logger.Info("starting gateway",
		zap.String("port", cfg.Port),
		zap.Strings("allowedOrigins", cfg.AllowedOrigins),
		zap.String("provider", cfg.Provider),
		zap.String("defaultModel", cfg.DefaultModel),
		zap.String("dbPath", cfg.DBPath))

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.ListenAndServe(ctx, srv.Mux(), cfg.Port, cfg.ShutdownTimeout, logger)
}

func newVerifier(cfg *config.Config) (auth.Verifier, error) {
	static, err := auth.NewStaticTokenVerifier(cfg.GatewayToken)
	if err != nil {
		return nil, err
	}
	if cfg.GatewayJWTSecret == "" {
		return static, nil
	}
	jwtVerifier, err := auth.NewJWTVerifier([]byte(cfg.GatewayJWTSecret))
	if err != nil {
		return nil, err
	}
	return auth.AnyOf{static, jwtVerifier}, nil
}
