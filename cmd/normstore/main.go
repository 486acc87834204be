// Copyright 2025 Normenwerk
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	normstore "github.com/normenwerk/normstore"
	"github.com/normenwerk/normstore/ai"
	"github.com/normenwerk/normstore/ai/openai"
	"github.com/normenwerk/normstore/catalog"
	"github.com/normenwerk/normstore/ingestion"
	"github.com/normenwerk/normstore/reembed"
	"github.com/normenwerk/normstore/retrieval"
	"github.com/normenwerk/normstore/storage/badger"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "normstore",
		Usage: "Ingestion and semantic retrieval for German federal law",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				Value:   envOr("NORMSTORE_DB", "./normstore-db"),
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL",
				Value: envOr("NORMSTORE_EMBEDDING_HOST", "http://localhost:11434/v1"),
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
				Value: envOr("NORMSTORE_EMBEDDING_MODEL", "embeddinggemma"),
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Fetch, parse, embed, and store one or more legal codes",
				ArgsUsage: "CODE [CODE...]",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Ingest every code from the catalog",
					},
					&cli.StringFlag{
						Name:  "catalog",
						Usage: "Path to a catalog YAML file",
						Value: "catalog.yaml",
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Concurrent embedding batches",
					},
				},
			},
			{
				Name:      "get",
				Usage:     "Look up units by code, optional section, and optional sub-section",
				ArgsUsage: "CODE [SECTION [SUBSECTION]]",
				Action:    getCommand,
			},
			{
				Name:      "search",
				Usage:     "Semantic search over stored units",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "code",
						Usage: "Restrict the search to one legal code",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: retrieval.DefaultLimit,
					},
					&cli.Float64Flag{
						Name:  "cutoff",
						Usage: "Cosine distance cutoff in [0, 2]",
						Value: float64(retrieval.DefaultCutoff),
					},
				},
			},
			{
				Name:   "codes",
				Usage:  "List the codes present in the store",
				Action: codesCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Rewrite all stored vectors with a new embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of units to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N units",
						Value: 100,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func aiConfigFromFlags(c *cli.Context) *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
}

func openDatabase(c *cli.Context) (*normstore.Database, error) {
	return normstore.NewDatabase(c.String("db"),
		normstore.WithAIConfig(aiConfigFromFlags(c)))
}

func ingestCommand(c *cli.Context) error {
	codes := c.Args().Slice()
	if c.Bool("all") {
		cat, err := catalog.Load(c.String("catalog"))
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		codes = cat.Codes()
	}
	if len(codes) == 0 {
		return fmt.Errorf("no codes given: pass CODE arguments or --all")
	}

	db, err := openDatabase(c)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	var opts []ingestion.Option
	if size := c.Int("pool-size"); size > 0 {
		opts = append(opts, ingestion.WithPoolSize(size))
	}
	pipeline, err := db.NewIngestionPipeline(opts...)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	reports := pipeline.IngestMany(context.Background(), codes)

	failed := 0
	for _, report := range reports {
		if report.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: FAILED: %v\n", report.Code, report.Err)
			continue
		}
		fmt.Fprintf(os.Stderr, "%s: %d created, %d updated, %d unchanged, %d failed (%d warnings, %v)\n",
			report.Code, report.Created, report.Updated, report.Unchanged,
			report.Failed, len(report.Warnings), report.Duration.Round(time.Millisecond))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d codes failed", failed, len(reports))
	}
	return nil
}

func getCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: get CODE [SECTION [SUBSECTION]]")
	}
	code := c.Args().Get(0)
	section := c.Args().Get(1)
	subSection := c.Args().Get(2)

	db, err := openDatabase(c)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	service, err := db.NewRetrievalService()
	if err != nil {
		return err
	}

	units, err := service.Query(context.Background(), code, section, subSection)
	if err != nil {
		return err
	}

	results := make([]map[string]any, 0, len(units))
	for _, unit := range units {
		results = append(results, map[string]any{
			"code":        unit.Code,
			"section":     unit.Section,
			"sub_section": unit.SubSection,
			"text":        unit.Text,
		})
	}
	return printJSON(map[string]any{
		"count":   len(results),
		"results": results,
	})
}

func searchCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: search QUERY")
	}
	query := strings.Join(c.Args().Slice(), " ")

	db, err := openDatabase(c)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	service, err := db.NewRetrievalService()
	if err != nil {
		return err
	}

	opts := []retrieval.SearchOption{
		retrieval.WithLimit(c.Int("limit")),
		retrieval.WithCutoff(float32(c.Float64("cutoff"))),
	}
	if code := c.String("code"); code != "" {
		opts = append(opts, retrieval.WithCode(code))
	}

	results, err := service.Search(context.Background(), query, opts...)
	if err != nil {
		return err
	}

	hits := make([]map[string]any, 0, len(results))
	for _, result := range results {
		hits = append(hits, map[string]any{
			"code":        result.Unit.Code,
			"section":     result.Unit.Section,
			"sub_section": result.Unit.SubSection,
			"text":        result.Unit.Text,
			"similarity":  result.Similarity,
		})
	}
	return printJSON(map[string]any{"count": len(hits), "results": hits})
}

func codesCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	service, err := db.NewRetrievalService()
	if err != nil {
		return err
	}

	codes, err := service.Codes(context.Background())
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"count": len(codes), "codes": codes})
}

func reembedCommand(c *cli.Context) error {
	aiConfig := aiConfigFromFlags(c)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	store := badger.NewTextRepository(backend)
	defer store.Close()

	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", aiConfig.EmbeddingHost)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", aiConfig.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	reembedder := reembed.NewReembedder(store, embedder, aiConfig, reembedConfig, os.Stderr)
	if err := reembedder.Run(context.Background()); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
