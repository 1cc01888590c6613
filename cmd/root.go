package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/KaramelBytes/datana-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/datana-cli/internal/config"
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "datana",
	Short: "Datana: sales spreadsheet analytics and insights",
	Long: `Datana reads sales spreadsheets (CSV, TSV, XLSX), recognizes columns in English or
Vietnamese, cleans messy numbers such as "1.234.567 ₫" or "2,5 triệu", and reports KPIs,
top products, monthly revenue and brand/category/region breakdowns. Insights come from
built-in rules or from an LLM (Groq, Gemini, OpenRouter or a local Ollama).`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.datana/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func setupLogging() {
	log.SetHandler(cli.New(os.Stderr))
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}
}

func loadConfig() {
	setupLogging()
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		log.WithError(err).Warn("failed to load config")
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	log.WithFields(log.Fields{"provider": cfg.DefaultProvider, "model": cfg.DefaultModel, "store": cfg.StoreDir}).Debug("config loaded")

	if cfg.ModelsAutoSync {
		url := cfg.ModelsCatalogURL
		if url == "" {
			url = providerURL(cfg.ModelsProvider)
		}
		if url != "" {
			if err := fetchAndApplyCatalog(url, cfg.ModelsMerge); err != nil {
				log.WithError(err).WithField("url", url).Warn("models auto-sync failed")
			}
		} else if preset, ok := ai.PresetCatalog(cfg.ModelsProvider); ok {
			ai.MergeCatalog(preset)
		}
	}
}

// fetchCatalog downloads a JSON catalog.
func fetchCatalog(url string) (map[string]ai.ModelInfo, error) {
	client := &http.Client{Timeout: 20 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch: unexpected status %s", resp.Status)
	}
	return ai.DecodeCatalog(resp.Body)
}

// fetchAndApplyCatalog downloads a JSON catalog and applies it in-memory.
func fetchAndApplyCatalog(url string, merge bool) error {
	m, err := fetchCatalog(url)
	if err != nil {
		return err
	}
	applyCatalog(m, merge)
	return nil
}

func applyCatalog(m map[string]ai.ModelInfo, merge bool) {
	if merge {
		ai.MergeCatalog(m)
	} else {
		ai.OverrideCatalog(m)
	}
}
