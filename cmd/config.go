package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/datana-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/datana-cli/internal/config"
	"github.com/KaramelBytes/datana-cli/internal/insights"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Datana configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		fmt.Fprintf(out, "api_key: %s\n", mask(cfg.APIKey))
		fmt.Fprintf(out, "gemini_api_key: %s\n", mask(cfg.GeminiAPIKey))
		fmt.Fprintf(out, "default_provider: %s\n", cfg.DefaultProvider)
		fmt.Fprintf(out, "default_model: %s\n", cfg.DefaultModel)
		fmt.Fprintf(out, "max_tokens: %d\n", cfg.MaxTokens)
		fmt.Fprintf(out, "temperature: %.3f\n", cfg.Temperature)
		fmt.Fprintf(out, "language: %s\n", cfg.Language)
		if cfg.DecimalSeparator != "" {
			fmt.Fprintf(out, "decimal_separator: %q\n", cfg.DecimalSeparator)
		}
		if cfg.ThousandsSeparator != "" {
			fmt.Fprintf(out, "thousands_separator: %q\n", cfg.ThousandsSeparator)
		}
		fmt.Fprintf(out, "max_rows: %d\n", cfg.MaxRows)
		fmt.Fprintf(out, "max_upload_mb: %d\n", cfg.MaxUploadMB)
		fmt.Fprintf(out, "store_dir: %s\n", cfg.StoreDir)
		fmt.Fprintf(out, "groq_base_url: %s\n", cfg.GroqBaseURL)
		fmt.Fprintf(out, "ollama_host: %s\n", cfg.OllamaHost)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Example: `  datana config set default_provider gemini
  datana config set gemini_api_key AIza...
  datana config set language vi
  datana config set decimal_separator comma`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigValue(cfg, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "api_key":
		c.APIKey = val
	case "gemini_api_key":
		c.GeminiAPIKey = val
	case "default_model":
		c.DefaultModel = val
	case "default_provider":
		p := normalizeProvider(val)
		if _, ok := ai.PresetCatalog(p); !ok {
			return fmt.Errorf("invalid default_provider: %s (use %s)", val, strings.Join(ai.Providers(), "|"))
		}
		c.DefaultProvider = p
	case "max_tokens":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for max_tokens: %v", val)
		}
		c.MaxTokens = i
	case "temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 || f > 2 {
			return fmt.Errorf("invalid float for temperature: %v (0..2)", val)
		}
		c.Temperature = f
	case "language":
		l := strings.ToLower(strings.TrimSpace(val))
		if l != insights.LangEnglish && l != insights.LangVietnamese {
			return fmt.Errorf("invalid language: %s (use en|vi)", val)
		}
		c.Language = l
	case "decimal_separator":
		switch strings.ToLower(val) {
		case ".", "dot":
			c.DecimalSeparator = "."
		case ",", "comma":
			c.DecimalSeparator = ","
		case "", "auto":
			c.DecimalSeparator = ""
		default:
			return fmt.Errorf("invalid decimal_separator: %s (use '.'|'comma'|auto)", val)
		}
	case "thousands_separator":
		switch strings.ToLower(val) {
		case ".", "dot":
			c.ThousandsSeparator = "."
		case ",", "comma":
			c.ThousandsSeparator = ","
		case " ", "space":
			c.ThousandsSeparator = "space"
		case "", "auto":
			c.ThousandsSeparator = ""
		default:
			return fmt.Errorf("invalid thousands_separator: %s (use ','|'.'|'space'|auto)", val)
		}
	case "max_rows", "max_upload_mb":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		if key == "max_rows" {
			c.MaxRows = i
		} else {
			c.MaxUploadMB = i
		}
	case "store_dir":
		c.StoreDir = val
	case "groq_base_url":
		c.GroqBaseURL = strings.TrimRight(val, "/")
	case "ollama_host":
		c.OllamaHost = strings.TrimRight(val, "/")
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
