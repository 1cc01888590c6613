package cmd

import (
	"context"
	"crypto/sha1"
	"fmt"
	"time"

	"github.com/KaramelBytes/datana-cli/internal/ai"
	"github.com/KaramelBytes/datana-cli/internal/analysis"
	"github.com/KaramelBytes/datana-cli/internal/insights"
	"github.com/KaramelBytes/datana-cli/internal/utils"
	"github.com/apex/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	insFlags       sheetFlags
	insAI          bool
	insModel       string
	insModelPreset string
	insProvider    string
	insMaxTokens   int
	insTemp        float64
	insDryRun      bool
	insQuiet       bool
	insJSON        bool
	insPrintPrompt bool
	insPromptLimit int
	insBudgetLimit float64
	insOutputPath  string
	insStream      bool
	insOllamaHost  string
	insTimeoutSec  int
	insQuestion    string
)

var insightsCmd = &cobra.Command{
	Use:   "insights <file|analysis-id>",
	Short: "Recommend actions for a spreadsheet or saved analysis, from rules or an LLM",
	Example: `  datana insights sales.xlsx
  datana insights 3f2a --lang vi --json
  datana insights sales.csv --ai --dry-run
  datana insights sales.csv --ai --provider gemini --question "Which region should we push next quarter?"
  datana insights 3f2a --ai --provider ollama --model qwen2.5:7b --stream`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer resetFlagSet(cmd.Flags())
		if insJSON {
			insQuiet = true
		}

		res, id, err := loadTarget(args[0], &insFlags)
		if err != nil {
			return err
		}
		lang := insFlags.language()
		rec := insights.Recommend(res, insights.Options{Lang: lang})
		source := res.File
		if id != "" {
			source = id
		}
		if !insAI {
			return writeRecommendations(cmd, rec, source)
		}
		return runAIInsights(cmd, res, rec, source, lang)
	},
}

// resetFlagSet restores every flag in f to its default once a run ends, so
// values given to one in-process invocation do not leak into the next.
func resetFlagSet(f *pflag.FlagSet) {
	f.VisitAll(func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	})
}

func writeRecommendations(cmd *cobra.Command, rec insights.Recommendations, source string) error {
	out := cmd.OutOrStdout()
	if insJSON {
		data, err := utils.PrettyJSON(map[string]any{
			"source":          source,
			"recommendations": rec,
		})
		if err != nil {
			return err
		}
		return writeOrPrint(out, insOutputPath, append(data, '\n'))
	}
	var data []byte
	if !insQuiet {
		data = append(data, fmt.Sprintf("=== Recommendations (%s) ===\n", source)...)
	}
	data = append(data, rec.Markdown()...)
	return writeOrPrint(out, insOutputPath, data)
}

func runAIInsights(cmd *cobra.Command, res *analysis.Result, rec insights.Recommendations, source, lang string) error {
	out := cmd.OutOrStdout()
	providerName := resolveProvider(cfg, insProvider)
	model := insModel
	if insModelPreset != "" && model == "" {
		name, ok := ai.RecommendModel(providerName, insModelPreset)
		if !ok {
			return fmt.Errorf("unknown --model-preset: %s (use cheap|balanced|high-context)", insModelPreset)
		}
		model = name
		if !insQuiet {
			fmt.Fprintf(out, "Selected model by tier preset (%s:%s): %s\n", providerName, insModelPreset, name)
		}
	}
	model = selectModel(cfg, providerName, model)

	prompt, tokens, err := insights.BuildPrompt(res, rec, insQuestion, lang)
	if err != nil {
		return err
	}
	if insPromptLimit > 0 && tokens > insPromptLimit {
		if !insQuiet {
			fmt.Fprintf(out, "⚠ Prompt exceeds limit (%d > %d). Truncating before send...\n", tokens, insPromptLimit)
		}
		prompt = utils.TruncateToTokenLimit(prompt, insPromptLimit)
		tokens = utils.CountTokens(prompt)
	}

	maxTokens := insMaxTokens
	if maxTokens == 0 && cfg != nil && cfg.MaxTokens > 0 {
		maxTokens = cfg.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 1024
	}
	temp := insTemp
	if temp == 0 && cfg != nil && cfg.Temperature > 0 {
		temp = cfg.Temperature
	}
	if temp == 0 {
		temp = 0.4
	}

	if !insQuiet {
		fmt.Fprintf(out, "Tokens: prompt≈%d, max-tokens=%d, provider=%s, model=%s\n", tokens, maxTokens, providerName, model)
	}

	var estCost float64
	if mi, ok := ai.LookupModel(model); ok {
		log.WithFields(log.Fields{"model": mi.Name, "context": mi.ContextTokens, "tokens": tokens, "max_tokens": maxTokens}).Debug("model metadata")
		if !insDryRun && mi.ContextTokens > 0 && tokens+maxTokens > mi.ContextTokens {
			if providerName == ai.ProviderOllama {
				return fmt.Errorf("context window exceeded for local model '%s': %d (prompt) + %d (max-tokens) > %d; use --prompt-limit %d or a larger model",
					model, tokens, maxTokens, mi.ContextTokens, max(mi.ContextTokens-maxTokens, mi.ContextTokens/2))
			}
			if !insQuiet {
				fmt.Fprintf(out, "⚠ Prompt (%d tokens) + max-tokens (%d) exceeds %s context window (~%d tokens).\n", tokens, maxTokens, mi.Name, mi.ContextTokens)
			}
		}
		if cost, ok := ai.EstimateCostUSD(model, tokens, maxTokens); ok {
			estCost = cost
			if !insQuiet && cost > 0 {
				fmt.Fprintf(out, "Estimated max cost: ~$%.4f (in %.4f/out %.4f per 1K tokens)\n", cost, mi.InputPerK, mi.OutputPerK)
			}
		}
	}
	if err := enforceBudget(estCost, insBudgetLimit); err != nil {
		return err
	}

	if insDryRun {
		if !insQuiet {
			sum := sha1.Sum([]byte(prompt))
			fmt.Fprintln(out, "\n--dry-run: no API call will be made. Prompt preview below --")
			fmt.Fprintf(out, "Request ID (dry-run): sim_%x\n", sum[:6])
		}
		fmt.Fprintln(out, prompt)
		return nil
	}

	client, providerName, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: insProvider, OllamaHost: insOllamaHost})
	if err != nil {
		return err
	}
	timeoutSec := insTimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = 180
	}
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	req := ai.GenerateRequest{
		Model: model,
		Messages: []ai.Message{
			{Role: "system", Content: insights.SystemPrompt(lang)},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temp,
	}

	handled, err := handleStreaming(ctx, client, req, streamingOptions{
		Enabled:     insStream,
		Quiet:       insQuiet,
		PrintPrompt: insPrintPrompt,
		Prompt:      prompt,
		Writer:      out,
		DeltaWriter: out,
	})
	if err != nil {
		return explainGenerateError(err, providerName, model, tokens)
	}
	if handled {
		return nil
	}
	if insPrintPrompt && !insQuiet {
		fmt.Fprintln(out, "\n--print-prompt: sending the following prompt --")
		fmt.Fprintln(out, prompt)
	}
	if !insQuiet {
		fmt.Fprintf(out, "⚙ Generating with %s model=%s ...\n", providerName, model)
	}
	resp, err := client.Generate(ctx, req)
	if err != nil {
		return explainGenerateError(err, providerName, model, tokens)
	}
	content := resp.Text()
	if content == "" {
		return fmt.Errorf("no content returned from model")
	}
	if resp.RequestID != "" && !insQuiet {
		fmt.Fprintf(out, "Request ID: %s\n", resp.RequestID)
	}
	log.WithFields(log.Fields{"prompt_tokens": resp.Usage.PromptTokens, "completion_tokens": resp.Usage.CompletionTokens}).Debug("usage")
	return formatAndWriteOutput(content, outputOptions{
		JSON:         insJSON,
		Quiet:        insQuiet,
		Source:       source,
		Provider:     providerName,
		Model:        model,
		MaxTokens:    maxTokens,
		Temperature:  temp,
		PromptTokens: tokens,
		OutputPath:   insOutputPath,
		Writer:       out,
	})
}

func init() {
	rootCmd.AddCommand(insightsCmd)
	insFlags.bind(insightsCmd.Flags())
	f := insightsCmd.Flags()
	f.BoolVar(&insAI, "ai", false, "ask an LLM instead of printing rule-based recommendations")
	f.StringVar(&insProvider, "provider", "", "LLM provider: groq|gemini|openrouter|ollama (default from config, else groq)")
	f.StringVar(&insModel, "model", "", "override model (default from config or provider preset)")
	f.StringVar(&insModelPreset, "model-preset", "", "pick the provider's model by tier: cheap|balanced|high-context")
	f.IntVar(&insMaxTokens, "max-tokens", 0, "max tokens for response")
	f.Float64Var(&insTemp, "temp", 0, "sampling temperature")
	f.BoolVar(&insDryRun, "dry-run", false, "build the prompt and print it without calling the API")
	f.BoolVar(&insPrintPrompt, "print-prompt", false, "print the prompt being sent to the API")
	f.IntVar(&insPromptLimit, "prompt-limit", 0, "truncate built prompt to this many tokens before sending")
	f.Float64Var(&insBudgetLimit, "budget-limit", 0, "fail if estimated max cost (USD) exceeds this budget")
	f.StringVarP(&insOutputPath, "output", "o", "", "optional path to write the result (.json writes an envelope)")
	f.BoolVar(&insQuiet, "quiet", false, "suppress non-essential output")
	f.BoolVar(&insJSON, "json", false, "emit JSON to stdout")
	f.BoolVar(&insStream, "stream", false, "stream responses if supported by the provider")
	f.StringVar(&insOllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
	f.IntVar(&insTimeoutSec, "timeout-sec", 180, "request timeout in seconds")
	f.StringVar(&insQuestion, "question", "", "question for the model (default: summary plus next-month actions)")
}
