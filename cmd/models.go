package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/datana-cli/internal/ai"
	"github.com/KaramelBytes/datana-cli/internal/utils"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage or inspect model catalog and pricing",
	Example: `  datana models show
  datana models show --provider gemini
  datana models sync --file ./models.json --merge
  datana models fetch --url https://example.com/models.json
  datana models fetch --provider groq --output models.json
  datana models fetch --provider ollama`,
}

var showProvider string

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := ai.Catalog()
		names := make([]string, 0, len(cat))
		for k, mi := range cat {
			if showProvider != "" && !strings.EqualFold(mi.Provider, showProvider) {
				continue
			}
			names = append(names, k)
		}
		sort.Strings(names)
		out := cmd.OutOrStdout()
		for _, n := range names {
			mi := cat[n]
			fmt.Fprintf(out, "- %-36s %-10s ctx=%-8d in=$%.5f/1K out=$%.5f/1K\n", n, mi.Provider, mi.ContextTokens, mi.InputPerK, mi.OutputPerK)
		}
		if len(names) == 0 {
			fmt.Fprintln(out, "(no models)")
		}
		return nil
	},
}

var (
	syncPath  string
	syncMerge bool
)

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load model catalog/pricing from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return fmt.Errorf("--file is required")
		}
		m, err := ai.LoadCatalogFromJSON(syncPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		applyCatalog(m, syncMerge)
		if syncMerge {
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d models from file\n", len(m))
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Replaced model catalog with %d models from file\n", len(m))
		}
		return nil
	},
}

// providerURL returns a catalog URL for a provider from DATANA_<PROVIDER>_CATALOG_URL.
func providerURL(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv("DATANA_" + strings.ToUpper(name) + "_CATALOG_URL")
}

var (
	fetchURL      string
	fetchOutput   string
	fetchMerge    bool
	fetchProvider string
)

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch model catalog/pricing JSON from a URL, a preset or a local Ollama",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		url := fetchURL
		if url == "" {
			url = providerURL(fetchProvider)
		}
		var m map[string]ai.ModelInfo
		switch {
		case url != "":
			fetched, err := fetchCatalog(url)
			if err != nil {
				return err
			}
			m = fetched
		case fetchProvider == ai.ProviderOllama || fetchProvider == ai.ProviderLocal:
			local, err := ollamaCatalog(cmd.Context())
			if err != nil {
				return err
			}
			m = local
		case fetchProvider != "":
			preset, ok := ai.PresetCatalog(fetchProvider)
			if !ok {
				return fmt.Errorf("unknown --provider: %s (known: %s)", fetchProvider, strings.Join(ai.Providers(), "|"))
			}
			m = preset
		default:
			return fmt.Errorf("--url is required (or specify --provider)")
		}
		if fetchOutput != "" {
			data, err := utils.PrettyJSON(m)
			if err != nil {
				return err
			}
			if err := os.WriteFile(fetchOutput, data, 0o644); err != nil {
				return fmt.Errorf("write file: %w", err)
			}
			fmt.Fprintf(out, "Saved catalog to %s\n", fetchOutput)
		}
		applyCatalog(m, fetchMerge)
		fmt.Fprintf(out, "Applied %d models to the in-memory catalog\n", len(m))
		return nil
	},
}

// ollamaCatalog lists locally pulled Ollama models as zero-cost entries.
func ollamaCatalog(ctx context.Context) (map[string]ai.ModelInfo, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	host := ai.DefaultOllamaHost
	if cfg != nil && cfg.OllamaHost != "" {
		host = cfg.OllamaHost
	}
	c := ai.NewOllamaClient(host, 10*time.Second, 1, 0, 0)
	names, err := c.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ollama models: %w", err)
	}
	m := make(map[string]ai.ModelInfo, len(names))
	for _, n := range names {
		mi, ok := ai.LookupModel(n)
		if !ok {
			mi = ai.ModelInfo{Name: n, ContextTokens: 8192}
		}
		mi.Provider = ai.ProviderOllama
		m[n] = mi
	}
	return m, nil
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsSyncCmd)
	modelsCmd.AddCommand(modelsFetchCmd)

	modelsShowCmd.Flags().StringVar(&showProvider, "provider", "", "only show models of this provider")

	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to JSON catalog file")
	modelsSyncCmd.Flags().BoolVar(&syncMerge, "merge", false, "merge into existing catalog instead of replacing")

	modelsFetchCmd.Flags().StringVar(&fetchURL, "url", "", "URL to JSON catalog file")
	modelsFetchCmd.Flags().StringVar(&fetchOutput, "output", "", "optional path to save the fetched JSON")
	modelsFetchCmd.Flags().BoolVar(&fetchMerge, "merge", true, "merge into existing catalog instead of replacing")
	modelsFetchCmd.Flags().StringVar(&fetchProvider, "provider", "", "provider preset (groq|gemini|openrouter|ollama) when --url is not set")
}
