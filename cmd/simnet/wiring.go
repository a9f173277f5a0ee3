package main

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/OFFIS-RIT/coordnet/internal/config"
	"github.com/OFFIS-RIT/coordnet/internal/storage"
	"github.com/OFFIS-RIT/coordnet/pkg/ai"
	oai "github.com/OFFIS-RIT/coordnet/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/coordnet/pkg/ai/openai"
	"github.com/OFFIS-RIT/coordnet/pkg/builder"
	"github.com/OFFIS-RIT/coordnet/pkg/common"
	"github.com/OFFIS-RIT/coordnet/pkg/loader"
	ioloader "github.com/OFFIS-RIT/coordnet/pkg/loader/io"
	s3loader "github.com/OFFIS-RIT/coordnet/pkg/loader/s3"
	"github.com/OFFIS-RIT/coordnet/pkg/store"
	"github.com/OFFIS-RIT/coordnet/pkg/store/fs"
	"github.com/OFFIS-RIT/coordnet/pkg/store/pgx"
	s3store "github.com/OFFIS-RIT/coordnet/pkg/store/s3"
	"github.com/OFFIS-RIT/coordnet/pkg/store/sqlite"
)

func newEmbedder(cfg config.Config) (ai.Embedder, error) {
	switch cfg.AI.Adapter {
	case "openai":
		return gai.NewOpenAIEmbedder(gai.NewOpenAIEmbedderParams{
			Model:                 cfg.AI.Model,
			BaseURL:               cfg.AI.URL,
			ApiKey:                cfg.AI.Key,
			MaxConcurrentRequests: cfg.AI.MaxConcurrent,
		}), nil
	default:
		client, err := oai.NewOllamaEmbedder(oai.NewOllamaEmbedderParams{
			Model:                 cfg.AI.Model,
			BaseURL:               cfg.AI.URL,
			ApiKey:                cfg.AI.Key,
			MaxConcurrentRequests: int64(cfg.AI.MaxConcurrent),
		})
		if err != nil {
			return nil, fmt.Errorf("could not create Ollama client: %w", err)
		}
		return client, nil
	}
}

func s3Params(cfg config.Config) storage.S3Params {
	return storage.S3Params{
		Region:    cfg.S3.Region,
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
	}
}

func openTables(ctx context.Context, cfg config.Config, family builder.Family) (loader.Tables, error) {
	var fileLoader loader.TableFileLoader
	switch cfg.InputSource {
	case config.InputS3:
		client, err := storage.NewS3Client(ctx, s3Params(cfg))
		if err != nil {
			return loader.Tables{}, err
		}
		fileLoader = s3loader.NewS3TableFileLoaderWithClient(cfg.S3.Bucket, path.Join(cfg.S3.Prefix, "raw"), client)
	default:
		fileLoader = ioloader.NewIOTableFileLoader(cfg.Paths().RawDir)
	}

	controlPath, suspectPath := family.Tables(cfg.Dataset)
	if controlPath == "" || suspectPath == "" {
		return loader.Tables{}, fmt.Errorf("no input tables known for dataset %s", cfg.Dataset)
	}

	control, err := loader.NewTableFile(loader.NewTableFileParams{
		Label:    common.PopulationControl,
		FilePath: filepath.ToSlash(controlPath),
		Loader:   fileLoader,
	})
	if err != nil {
		return loader.Tables{}, err
	}
	suspect, err := loader.NewTableFile(loader.NewTableFileParams{
		Label:    common.PopulationSuspect,
		FilePath: filepath.ToSlash(suspectPath),
		Loader:   fileLoader,
	})
	if err != nil {
		return loader.Tables{}, err
	}
	return loader.Tables{Control: control, Suspect: suspect}, nil
}

func openStorage(ctx context.Context, cfg config.Config) (store.GraphStorage, error) {
	switch cfg.StoreBackend {
	case config.StoreS3:
		client, err := storage.NewS3Client(ctx, s3Params(cfg))
		if err != nil {
			return nil, err
		}
		return s3store.NewS3StorageWithClient(client, cfg.S3.Bucket, path.Join(cfg.S3.Prefix, "processed")), nil
	case config.StorePostgres:
		return pgx.NewGraphDBStorage(ctx, cfg.DatabaseURL)
	case config.StoreSQLite:
		return sqlite.NewSQLiteStorage(ctx, cfg.SQLiteFile())
	default:
		return fs.NewFSStorage(cfg.Paths().ProcessedDir)
	}
}
