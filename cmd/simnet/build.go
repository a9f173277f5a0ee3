package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/coordnet/internal/config"
	"github.com/OFFIS-RIT/coordnet/internal/notify"
	"github.com/OFFIS-RIT/coordnet/pkg/builder"
	"github.com/OFFIS-RIT/coordnet/pkg/logger"
	"github.com/OFFIS-RIT/coordnet/pkg/logger/console"
	"github.com/OFFIS-RIT/coordnet/pkg/pipeline"
	"github.com/OFFIS-RIT/coordnet/pkg/runlock"
	"github.com/OFFIS-RIT/coordnet/pkg/store/pgx"

	"github.com/spf13/cobra"
)

func newBuildCmd() *cobra.Command {
	var (
		configFile string
		envFiles   []string
		dataset    string
		deviceID   string
		baseDir    string
		validate   bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the similarity networks of a dataset and fuse them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := config.Overrides{}
			flags := cmd.Flags()
			if flags.Changed("dataset") {
				overrides.Dataset = &dataset
			}
			if flags.Changed("device") {
				overrides.DeviceID = &deviceID
			}
			if flags.Changed("base-dir") {
				overrides.BaseDir = &baseDir
			}
			if flags.Changed("validate-node-ids") {
				overrides.ValidateNodeIDs = &validate
			}

			cfg, err := config.Load(config.LoadParams{
				EnvFiles:   envFiles,
				ConfigFile: configFile,
				Overrides:  overrides,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBuild(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "YAML file overlaying the environment")
	flags.StringSliceVar(&envFiles, "env-file", nil, ".env files to load (default .env)")
	flags.StringVar(&dataset, "dataset", "", "dataset to process")
	flags.StringVar(&deviceID, "device", "", "accelerator passed to the embedding backend")
	flags.StringVar(&baseDir, "base-dir", "", "directory holding raw/ and processed/")
	flags.BoolVar(&validate, "validate-node-ids", false, "drop nodes with non canonical ids before persisting")
	return cmd
}

func runBuild(ctx context.Context, cfg config.Config) error {
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		Format: cfg.LogFormat,
	}))

	paths := cfg.Paths()
	logger.Info("[Config] Loaded",
		"dataset", cfg.Dataset,
		"base_dir", paths.BaseDir,
		"store", cfg.StoreBackend,
		"input", cfg.InputSource,
	)

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	family := builder.Resolve(cfg.Dataset, builder.Options{
		Embedder:       embedder,
		Similarity:     cfg.TweetSimThreshold,
		EmbedMaxTokens: cfg.AI.MaxTokens,
	})

	tables, err := openTables(ctx, cfg, family)
	if err != nil {
		return err
	}

	storage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer storage.Close()

	var publisher notify.Publisher
	if cfg.RabbitMQ.Host != "" {
		p, err := notify.Dial(notify.Params{
			User:     cfg.RabbitMQ.User,
			Password: cfg.RabbitMQ.Password,
			Host:     cfg.RabbitMQ.Host,
			Port:     cfg.RabbitMQ.Port,
		})
		if err != nil {
			logger.Warn("[Notify] Broker unavailable, run completion will not be published", "err", err)
		} else {
			defer p.Close()
			publisher = p
		}
	}

	client := pipeline.NewPipelineClient(pipeline.NewPipelineClientParams{
		ParallelBuilders: cfg.ParallelBuilders,
		Notifier:         publisher,
	})
	runCfg := pipeline.Config{
		Dataset:             cfg.Dataset,
		DeviceID:            cfg.DeviceID,
		ActivityThreshold:   cfg.ActivityThreshold,
		MinHashtags:         cfg.MinHashtags,
		FastRetweetInterval: cfg.FastRetweetInterval,
		ValidateNodeIDs:     cfg.ValidateNodeIDs,
		TweetSimDir:         paths.TweetSimDir,
	}

	run := func(ctx context.Context) error {
		_, err := client.Run(ctx, runCfg, family, tables, storage)
		return err
	}

	if db, ok := storage.(*pgx.GraphDBStorage); ok {
		return runlock.New(db.Pool()).WithLock(ctx, cfg.Dataset, run)
	}
	return run(ctx)
}
