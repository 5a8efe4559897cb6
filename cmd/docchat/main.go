package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/docchat/internal/chat"
	"github.com/user/docchat/internal/config"
	"github.com/user/docchat/internal/documents"
	"github.com/user/docchat/internal/gateway"
	"github.com/user/docchat/internal/history"
	"github.com/user/docchat/internal/logx"
	"github.com/user/docchat/internal/retry"
	"github.com/user/docchat/internal/types"
	"github.com/user/docchat/internal/websearch"
	"github.com/user/docchat/pkg/assistant"
	"github.com/user/docchat/pkg/llm"
	"github.com/user/docchat/pkg/llm/openai"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "docchat",
	Short:         "Document chat backend with web search fallback",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	logx.Init(logx.LoggerOpts{
		Environment: logx.ParseEnvironment(cfg.Env),
		Level:       cfg.LogLevel,
	})
}

// app holds the wired components shared by every command.
type app struct {
	cfg     *config.Config
	chat    *chat.Service
	gateway *gateway.Gateway
	close   func()
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	docs := documents.NewTable(documents.Default)
	if cfg.DocumentsFile != "" {
		loaded, err := documents.Load(cfg.DocumentsFile)
		if err != nil {
			return nil, fmt.Errorf("load documents: %w", err)
		}
		docs = loaded
	}

	client, err := assistant.New(assistant.Config{
		BaseURL:           cfg.Assistant.BaseURL,
		APIKey:            cfg.Assistant.APIKey,
		AssistantID:       cfg.Assistant.AssistantID,
		Beta:              cfg.Assistant.Beta,
		Timeout:           cfg.Assistant.RequestTimeout,
		RequestsPerSecond: cfg.Assistant.RequestsPerSecond,
		Retry:             retry.Fixed(cfg.Assistant.RetryAttempts, cfg.Assistant.RetryDelay),
	})
	if err != nil {
		return nil, err
	}

	web := buildWebSearch(cfg)

	closers := []func(){}
	var store types.HistoryStore
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func() { rdb.Close() })
		store = history.NewRedisStore(rdb, cfg.HistoryTTL)
		logx.Info().Msg("history backend: redis")
	} else {
		store = history.NewFileStore(cfg.DataDir)
		logx.Info().Str("dir", cfg.DataDir).Msg("history backend: files")
	}

	gw := gateway.New(cfg.MaxConcurrent)
	gw.Start(ctx)
	closers = append([]func(){gw.Stop}, closers...)

	svc := chat.New(client, web, store, docs, gw, chat.Config{
		ChatTimeout:      cfg.Run.ChatTimeout,
		ChecklistTimeout: cfg.Run.ChecklistTimeout,
		StreamMaxPolls:   cfg.Run.StreamMaxPolls,
		PollInterval:     cfg.Run.PollInterval,
		ContextTurns:     cfg.WebSearch.ContextTurns,
	})
	return &app{
		cfg:     cfg,
		chat:    svc,
		gateway: gw,
		close: func() {
			for _, c := range closers {
				c()
			}
		},
	}, nil
}

// buildWebSearch returns a web search client. Missing credentials leave the
// provider nil, so searches answer with the apology result.
func buildWebSearch(cfg *config.Config) *websearch.Client {
	wcfg := websearch.Config{
		ContextTurns:  cfg.WebSearch.ContextTurns,
		ContextTokens: cfg.WebSearch.ContextTokens,
		MaxCitations:  cfg.WebSearch.MaxCitations,
		Retry:         retry.Fixed(cfg.Assistant.RetryAttempts, cfg.Assistant.RetryDelay),
	}
	var opts []websearch.Option
	if tok, err := websearch.NewTiktoken(cfg.WebSearch.Model); err == nil {
		opts = append(opts, websearch.WithTokenizer(tok))
	} else {
		logx.Warn().Err(err).Msg("tokenizer unavailable, estimating tokens from length")
	}

	provider, err := openai.New("web_search", &llm.Config{
		BaseURL:     cfg.WebSearch.BaseURL,
		APIKey:      cfg.WebSearch.APIKey,
		Model:       cfg.WebSearch.Model,
		MaxTokens:   cfg.WebSearch.MaxTokens,
		Temperature: cfg.WebSearch.Temperature,
		Timeout:     cfg.WebSearch.Timeout,
	})
	if err != nil {
		logx.Warn().Err(err).Msg("web search disabled")
		return websearch.New(nil, wcfg, opts...)
	}
	return websearch.New(provider, wcfg, opts...)
}
