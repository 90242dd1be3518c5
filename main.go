package main

import (
	"context"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse"
	_ "github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse/glue"
	_ "github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse/snowflake"
	_ "github.com/Sumeet513/snowflake-data-catalog/pkg/adapters/warehouse/sqlserver"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/config"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/database"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/llm"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/logging"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/repositories"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/services"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/services/ledger"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	cfgFile string
	fromEnv bool
)

var rootCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Snowflake metadata catalog",
	Long: `Collects database, schema, table and column metadata from Snowflake
(and SQL Server or AWS Glue) into a PostgreSQL catalog store.

Running without a subcommand starts the HTTP API.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func main() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&fromEnv, "env-only", false, "ignore the config file and read environment variables only")
}

// app holds the wired components shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db     *database.DB
	redis  *redis.Client
	ledger ledger.Ledger

	catalogRepo repositories.CatalogRepository
	collection  services.CollectionService
	enrichment  services.EnrichmentService
	search      services.SearchService
	tags        services.TagService
}

func loadConfig() (*config.Config, error) {
	if fromEnv {
		return config.LoadFromEnv(Version)
	}
	return config.Load(cfgFile, Version)
}

// newApp connects the catalog store and the ledger and builds the services.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeDSN(cfg.Database.URL())),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("export_bucket", cfg.Export.S3Bucket))

	a := &app{cfg: cfg, logger: logger}

	a.db, err = database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	}, logger)
	if err != nil {
		return nil, err
	}

	a.redis, err = database.NewRedisClient(ctx, &cfg.Redis, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	if a.redis != nil {
		a.ledger = ledger.NewRedisLedger(a.redis, cfg.Collection.LedgerTTL(), logger)
	} else {
		logger.Info("Redis not configured, progress is kept in memory")
		a.ledger = ledger.NewMemoryLedger(cfg.Collection.LedgerTTL())
	}

	provider, err := llm.NewProvider(cfg.LLM, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	a.catalogRepo = repositories.NewCatalogRepository(a.db)

	var exporter services.SnapshotExporter
	if cfg.Export.S3Bucket != "" {
		store, err := services.NewS3ObjectStore(ctx, cfg.Glue.Profile, cfg.Glue.Region)
		if err != nil {
			a.close()
			return nil, err
		}
		exporter = services.NewSnapshotExporter(a.catalogRepo, store, cfg.Export, logger)
	}

	sources := warehouse.NewSourceFactory(sourceDefaults(cfg), logger)
	a.collection = services.NewCollectionService(services.CollectionDeps{
		Sources:  sources,
		Walker:   services.NewSchemaWalker(logger),
		Repo:     a.catalogRepo,
		Ledger:   a.ledger,
		Exporter: exporter,
		Config:   cfg.Collection,
		Mirror:   cfg.Export.WarehouseMirror,
	}, logger)
	a.enrichment = services.NewEnrichmentService(a.catalogRepo, provider, cfg.LLM.MaxConcurrent, logger)
	a.search = services.NewSearchService(a.catalogRepo, logger)
	a.tags = services.NewTagService(repositories.NewTagRepository(a.db), a.catalogRepo, logger)

	return a, nil
}

// sourceDefaults are server-wide settings merged under request credentials.
func sourceDefaults(cfg *config.Config) map[string]map[string]any {
	return map[string]map[string]any{
		"snowflake": {
			"default_region":    cfg.Warehouse.DefaultRegion,
			"connect_timeout":   cfg.Warehouse.ConnectTimeoutSeconds,
			"login_timeout":     cfg.Warehouse.LoginTimeoutSeconds,
			"statement_timeout": cfg.Warehouse.StatementTimeoutSeconds,
		},
		"glue": {
			"profile": cfg.Glue.Profile,
			"region":  cfg.Glue.Region,
		},
	}
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	_ = a.logger.Sync()
}
