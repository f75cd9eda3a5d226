package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/locallore/lore/internal/models"
	"github.com/locallore/lore/internal/types"
	"github.com/locallore/lore/pkg/chunker"
	cfgPkg "github.com/locallore/lore/pkg/config"
	"github.com/locallore/lore/pkg/fetch"
	"github.com/locallore/lore/pkg/llm"
	"github.com/locallore/lore/pkg/retriever"
	"github.com/locallore/lore/pkg/store"
	"github.com/locallore/lore/pkg/websearch"
)

type Flags struct {
	ConfigPath string
	DBPath     string
	Threshold  float64
	IngestPath string
	Label      string
	Query      string
	Stats      bool
	Debug      bool
}

func main() {
	flags := parseFlags()

	if err := run(flags); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Flags {
	var flags Flags

	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&flags.DBPath, "db", "", "SQLite database path")
	flag.Float64Var(&flags.Threshold, "threshold", 0, "Relevance threshold (Euclidean distance)")
	flag.StringVar(&flags.IngestPath, "ingest", "", "File path or URL to ingest")
	flag.StringVar(&flags.Label, "label", "", "Document label for ingestion")
	flag.StringVar(&flags.Query, "query", "", "One-shot query")
	flag.BoolVar(&flags.Stats, "stats", false, "Print store statistics")
	flag.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	flag.Parse()

	return flags
}

func run(flags Flags) error {
	config, err := cfgPkg.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}

	if flags.DBPath != "" {
		config.Database.Path = flags.DBPath
	}
	if flags.Threshold > 0 {
		config.Retriever.RelevanceThreshold = flags.Threshold
	}

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %s", e.Error())
		}
		return fmt.Errorf("invalid configuration")
	}

	logger := zap.NewNop()
	if flags.Debug {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
	}

	ctx := context.Background()

	vectorStore, err := buildStore(ctx, config)
	if err != nil {
		return err
	}
	defer vectorStore.Close()

	if err := vectorStore.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}

	r, err := buildRetriever(config, vectorStore, logger)
	if err != nil {
		return err
	}

	switch {
	case flags.Stats:
		return printStats(ctx, vectorStore)
	case flags.IngestPath != "":
		return ingest(ctx, r, flags.IngestPath, flags.Label)
	case flags.Query != "":
		return query(ctx, r, flags.Query)
	default:
		return interactive(ctx, r)
	}
}

func printStats(ctx context.Context, vectorStore types.VectorStore) error {
	stats, err := vectorStore.Stats(ctx)
	if err != nil {
		return err
	}

	color.Blue("Store statistics:")
	fmt.Printf("  documents: %d\n", stats.Documents)
	fmt.Printf("  chunks:    %d\n", stats.Chunks)
	fmt.Printf("  vectors:   %d\n", stats.Vectors)
	return nil
}

func buildStore(ctx context.Context, config *cfgPkg.Config) (types.VectorStore, error) {
	switch config.Database.Backend {
	case "postgres":
		return store.NewPG(ctx, store.PGConfig{
			ConnString: config.Database.URL,
			VectorDim:  config.Database.VectorDim,
		})
	default:
		return store.NewSQLite(store.SQLiteConfig{
			Path:      config.Database.Path,
			VectorDim: config.Database.VectorDim,
		})
	}
}

func buildRetriever(config *cfgPkg.Config, vectorStore types.VectorStore, logger *zap.Logger) (*retriever.Retriever, error) {
	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  config.Embeddings.Provider,
		Model:     config.Embeddings.Model,
		BaseURL:   config.Embeddings.BaseURL,
		Token:     config.Embeddings.Token,
		BatchSize: config.Embeddings.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	wrapped := llm.NewRetryEmbedder(
		llm.NewRateLimitedEmbedder(embedder, config.Embeddings.RateLimit),
		llm.RetryConfig{})

	opts := []retriever.Option{retriever.WithLogger(logger)}

	chat, err := llm.NewChatWithConfig(llm.ChatConfig{
		Provider:    config.LLM.Provider,
		Model:       config.LLM.Model,
		BaseURL:     config.LLM.BaseURL,
		Token:       config.LLM.Token,
		Temperature: config.LLM.Temperature,
		MaxTokens:   config.LLM.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	opts = append(opts, retriever.WithCompleter(llm.NewRetryCompleter(chat, llm.RetryConfig{})))

	if config.Search.APIKey != "" {
		searcher, err := websearch.NewPerplexity(websearch.PerplexityConfig{
			APIKey:     config.Search.APIKey,
			MaxResults: config.Search.MaxResults,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, retriever.WithSearcher(searcher))
	}

	return retriever.New(
		wrapped,
		vectorStore,
		chunker.NewWithConfig(chunker.ChunkerConfig{
			TargetSize:     config.Chunker.TargetSize,
			OverlapPercent: config.Chunker.OverlapPercent,
		}),
		retriever.Config{
			RelevanceThreshold: config.Retriever.RelevanceThreshold,
			SearchK:            config.Retriever.SearchK,
			TopK:               config.Retriever.TopK,
			MaxQuoteLen:        config.Retriever.MaxQuoteLen,
		},
		opts...)
}

func ingest(ctx context.Context, r *retriever.Retriever, source, label string) error {
	var text string

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		title, pageText, err := fetch.New().PageText(ctx, source)
		if err != nil {
			return err
		}
		text = pageText
		if label == "" {
			label = title
		}
		if label == "" {
			label = source
		}
	} else {
		data, err := os.ReadFile(source)
		if err != nil {
			return err
		}
		text = string(data)
		if label == "" {
			label = filepath.Base(source)
		}
	}

	bar := spinner(fmt.Sprintf("Ingesting %s", label))

	var count int
	err := retriever.WithHeartbeat(ctx, 200*time.Millisecond,
		func() { bar.Add(1) },
		func(ctx context.Context) error {
			var err error
			_, count, err = r.Ingest(ctx, label, text)
			return err
		})
	bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	color.Green("Ingested %q: %d chunks", label, count)
	return nil
}

func query(ctx context.Context, r *retriever.Retriever, q string) error {
	bar := spinner("Searching")

	var answer *models.Answer
	err := retriever.WithHeartbeat(ctx, 200*time.Millisecond,
		func() { bar.Add(1) },
		func(ctx context.Context) error {
			var err error
			answer, err = r.Query(ctx, q)
			return err
		})
	bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	printAnswer(answer)
	return nil
}

func interactive(ctx context.Context, r *retriever.Retriever) error {
	color.Blue("Ask a question, or type 'exit' to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		if q == "exit" || q == "quit" {
			break
		}

		if err := query(ctx, r, q); err != nil {
			color.Red("Error: %v", err)
		}
	}

	return scanner.Err()
}

func printAnswer(answer *models.Answer) {
	if !answer.Found {
		color.Yellow("No information found, locally or externally.")
		return
	}

	fmt.Println(answer.Content)

	if answer.Source != nil {
		fmt.Println()
		if answer.Source.URL != "" {
			color.Cyan("Source: %s (%s)", answer.Source.Label, answer.Source.URL)
		} else {
			color.Cyan("Source: %s", answer.Source.Label)
		}
		color.Cyan("Quote: %s", answer.Source.Quote)
	}

	if answer.Degraded {
		color.Yellow("Note: no result passed the relevance threshold (%d of %d candidates); showing the nearest matches anyway.",
			answer.Diagnostics.RelevantCandidates, answer.Diagnostics.TotalCandidates)
	}
	if answer.Augmented {
		color.Yellow("Note: answered from a web search result, now saved locally.")
	}
}

func spinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWriter(os.Stderr),
	)
}
