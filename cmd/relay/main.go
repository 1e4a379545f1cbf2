// Package main is the entry point for the Relay CLI application.
// Relay is a multi-provider inference router with quota-aware web
// search and a quality-gated orchestration pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/normanking/relay/internal/bus"
	"github.com/normanking/relay/internal/config"
	"github.com/normanking/relay/internal/llm"
	"github.com/normanking/relay/internal/logging"
	"github.com/normanking/relay/internal/memory"
	"github.com/normanking/relay/internal/metrics"
	"github.com/normanking/relay/internal/orchestrator"
	"github.com/normanking/relay/internal/quota"
	"github.com/normanking/relay/internal/router"
	"github.com/normanking/relay/internal/search"
	"github.com/normanking/relay/internal/server"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "relay",
		Short: "Relay - Multi-provider inference router with quota-aware fallback",
		Long: `Relay routes natural-language requests across LLM providers with
capability-based selection and automatic fallback, backed by a
quota-aware web search gateway and a quality-gated pipeline.

Run the HTTP server:   relay serve
One-shot question:     relay query "calories in 2 dosas"
Provider and quota:    relay status`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.relay/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Relay v%s\n", version)
		},
	})

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the wired application graph.
type app struct {
	cfg     *config.Config
	router  *router.Router
	ledger  *quota.Ledger
	pipe    *orchestrator.Orchestrator
	store   *memory.Store
	events  *bus.Bus
	metrics *metrics.Collector
}

// statusSource adapts the router and ledger to the status endpoint.
type statusSource struct {
	router *router.Router
	ledger *quota.Ledger
}

func (s *statusSource) ProviderStatus() map[string]bool {
	out := map[string]bool{}
	for _, d := range s.router.Status() {
		out[d.ID] = d.Configured && d.Healthy
	}
	return out
}

func (s *statusSource) QuotaStatus() quota.Snapshot {
	return s.ledger.Status()
}

// buildApp wires config into the full pipeline.
func buildApp(withStore bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	if err := logging.Setup(level, cfg.Logging.File); err != nil {
		return nil, err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	ledger := quota.NewLedger(quota.NewFileStore(cfg.Search.QuotaFile), map[string]int{
		"brave":  cfg.Search.BraveMonthlyLimit,
		"tavily": cfg.Search.TavilyMonthlyLimit,
	})

	events := bus.New()

	knowledge := registry.Get(cfg.LLM.DefaultProvider)
	gateway := search.NewGateway(
		search.NewBraveClient(cfg.Search.BraveAPIKey, ""),
		search.NewTavilyClient(cfg.Search.TavilyAPIKey, ""),
		ledger,
		knowledge,
	)
	gateway.SetEventBus(events)

	rt := router.New(registry, ledger,
		router.WithSearchGateway(gateway),
		router.WithFallbackOrder(cfg.Router.FallbackOrder),
		router.WithCallTimeout(cfg.CallTimeout()),
		router.WithEventBus(events),
	)

	a := &app{
		cfg:     cfg,
		router:  rt,
		ledger:  ledger,
		events:  events,
		metrics: metrics.NewCollector(events),
	}

	var store orchestrator.ExchangeStore
	if withStore {
		s, err := memory.NewStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open conversation store: %w", err)
		}
		a.store = s
		store = s
	}

	a.pipe = orchestrator.New(orchestrator.Config{
		Generator: rt,
		Gateway:   gateway,
		Providers: registry,
		Store:     store,
		Events:    events,
	})
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.events != nil {
		a.events.Close()
	}
}

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFromPath(cfgPath)
	}
	return config.Load()
}

// buildRegistry instantiates every configured provider with its
// capability set. Rank follows the fallback order.
func buildRegistry(cfg *config.Config) (*llm.Registry, error) {
	caps := map[string][]llm.Capability{
		"gemini":     {llm.CapFast, llm.CapReasoning, llm.CapVision, llm.CapCoding, llm.CapGeneral},
		"groq":       {llm.CapFast, llm.CapReasoning, llm.CapCoding, llm.CapGeneral},
		"openrouter": {llm.CapFast, llm.CapReasoning, llm.CapVision, llm.CapCoding, llm.CapGeneral},
		"ollama":     {llm.CapFast, llm.CapReasoning, llm.CapVision, llm.CapCoding, llm.CapGeneral},
	}

	rank := map[string]int{}
	for i, name := range cfg.Router.FallbackOrder {
		rank[name] = i
	}

	registry := llm.NewRegistry()
	for name, pc := range cfg.LLM.Providers {
		provider, err := llm.NewProviderByName(name, providerConfig(name, pc))
		if err != nil {
			return nil, err
		}
		r, ok := rank[name]
		if !ok {
			r = len(rank)
		}
		registry.Register(provider, r, caps[name]...)
	}
	return registry, nil
}

// providerConfig merges the YAML provider section onto the provider's
// built-in defaults.
func providerConfig(name string, pc config.ProviderConfig) *llm.ProviderConfig {
	cfg := llm.DefaultConfig(name)
	if cfg == nil {
		cfg = &llm.ProviderConfig{Name: name}
	}
	if pc.Endpoint != "" {
		cfg.Endpoint = pc.Endpoint
	}
	if pc.APIKey != "" {
		cfg.APIKey = pc.APIKey
	}
	if pc.Model != "" {
		cfg.Model = pc.Model
	}
	if pc.ReasoningModel != "" {
		cfg.ReasoningModel = pc.ReasoningModel
	}
	return cfg
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			srvCfg := &server.Config{
				Port:            a.cfg.Server.Port,
				ShutdownTimeout: time.Duration(a.cfg.Server.ShutdownTimeoutSec) * time.Second,
				RequestTimeout:  time.Duration(a.cfg.Server.RequestTimeoutSec) * time.Second,
			}
			if port != 0 {
				srvCfg.Port = port
			}

			srv := server.New(srvCfg, a.pipe, &statusSource{router: a.router, ledger: a.ledger}).
				WithMetrics(a.metrics)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.Start(ctx); err != nil {
				return err
			}
			log.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}

func queryCmd() *cobra.Command {
	var userID string
	var verifyFacts bool

	cmd := &cobra.Command{
		Use:   "query <message>",
		Short: "Run one message through the pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(userID != "")
			if err != nil {
				return err
			}
			defer a.close()

			message := args[0]
			for _, arg := range args[1:] {
				message += " " + arg
			}

			out := a.pipe.Process(cmd.Context(), orchestrator.Request{
				Message:     message,
				UserID:      userID,
				VerifyFacts: verifyFacts,
			})
			a.pipe.Flush()

			fmt.Println(out.Response)
			if verbose {
				fmt.Fprintf(os.Stderr, "\nintent=%s agent=%q provider=%s verified=%v confidence=%.2f\n",
					out.Intent, out.AgentUsed, out.Provider, out.Verified, out.Confidence)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id for conversation memory")
	cmd.Flags().BoolVar(&verifyFacts, "verify-facts", false, "run the fact-checking stage")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configured providers and quota usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(false)
			if err != nil {
				return err
			}

			out := struct {
				Providers []llm.Descriptor `json:"providers"`
				Quota     quota.Snapshot   `json:"quota"`
			}{
				Providers: a.router.Status(),
				Quota:     a.ledger.Status(),
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
