package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

const salesCSV = `Product,Brand,Category,Region,Date,Qty,Price,Revenue,Profit
Áo thun,Acme,Apparel,Hà Nội,05/01/2024,10,150000,"1.500.000",300000
Quần jean,Acme,Apparel,TP HCM,12/02/2024,4,450000,"1.800.000",540000
Giày chạy,Zeta,Footwear,Đà Nẵng,20/03/2024,2,"1.200.000","2.400.000",480000
`

// resetFlags restores every flag to its default so values from one run do
// not leak into the next.
func resetFlags(c *cobra.Command) {
	resetFlagSet(c.Flags())
	resetFlagSet(c.PersistentFlags())
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execCmd executes the root command with args and returns its stdout.
func execCmd(args ...string) (string, error) {
	resetFlags(rootCmd)
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	rootCmd.SetOut(nil)
	return buf.String(), err
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, out)
	}
	return out
}

// isolate points HOME at a temp dir so config and saved analyses stay local.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	oldHome := os.Getenv("HOME")
	t.Cleanup(func() { os.Setenv("HOME", oldHome) })
	os.Setenv("HOME", home)
	for _, k := range []string{"DATANA_STORE_DIR", "DATANA_DEFAULT_PROVIDER", "DATANA_DEFAULT_MODEL", "DATANA_LANGUAGE"} {
		t.Setenv(k, "")
	}
	return home
}

func writeSales(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(salesCSV), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return p
}

func TestCLI_AnalyzeSaveListShowRemove(t *testing.T) {
	home := isolate(t)
	csvPath := writeSales(t, home, "sales.csv")
	jsonPath := filepath.Join(home, "sales.json")

	out := runCmd(t, "analyze", csvPath, "--format", "json", "--save", "-o", jsonPath)
	if !strings.Contains(out, "Saved analysis") {
		t.Fatalf("expected save confirmation, got %q", out)
	}
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var doc analysisDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if doc.ID == "" || doc.Analysis == nil {
		t.Fatalf("expected id and analysis, got %+v", doc)
	}
	if doc.Analysis.KPI.RowCount != 3 {
		t.Fatalf("expected 3 rows, got %d", doc.Analysis.KPI.RowCount)
	}
	if doc.Analysis.KPI.TotalRevenue != 5700000 {
		t.Fatalf("expected revenue 5700000, got %v", doc.Analysis.KPI.TotalRevenue)
	}
	if _, err := os.Stat(filepath.Join(home, ".datana", "analyses", doc.ID+".json")); err != nil {
		t.Fatalf("expected saved analysis under HOME: %v", err)
	}

	list := runCmd(t, "list")
	if !strings.Contains(list, doc.ID) || !strings.Contains(list, "sales.csv") {
		t.Fatalf("list missing entry: %q", list)
	}

	show := runCmd(t, "show", doc.ID[:8], "--recommendations")
	if !strings.Contains(show, "[KPI]") || !strings.Contains(show, "[RECOMMENDATIONS]") {
		t.Fatalf("show output incomplete: %q", show)
	}

	runCmd(t, "rm", doc.ID)
	if list := runCmd(t, "list"); !strings.Contains(list, "(no saved analyses)") {
		t.Fatalf("expected empty list after rm, got %q", list)
	}
	if _, err := execCmd("show", doc.ID); err == nil {
		t.Fatal("expected error showing a deleted analysis")
	}
}

func TestCLI_AnalyzeMarkdownWithOverride(t *testing.T) {
	home := isolate(t)
	p := filepath.Join(home, "vn.csv")
	data := "Tên hàng,SL,Thành tiền,Ghi chú\nBút bi,3,\"1.230.000\",x\nVở,5,\"2.500.000\",y\n"
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	out := runCmd(t, "analyze", p, "--map", "product=Tên hàng")
	for _, want := range []string{"[DATASET SUMMARY]", "Rows: 2", "Total revenue: 3,730,000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if _, err := execCmd("analyze", p, "--map", "nonsense"); err == nil {
		t.Fatal("expected error for malformed --map")
	}
}

func TestCLI_InsightsRuleBased(t *testing.T) {
	home := isolate(t)
	csvPath := writeSales(t, home, "sales.csv")

	out := runCmd(t, "insights", csvPath, "--json")
	var doc struct {
		Source          string         `json:"source"`
		Recommendations map[string]any `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode insights json: %v\n%s", err, out)
	}
	if doc.Source != "sales.csv" {
		t.Fatalf("unexpected source %q", doc.Source)
	}
	if _, ok := doc.Recommendations["overall_strategy"]; !ok {
		t.Fatalf("missing overall_strategy: %v", doc.Recommendations)
	}

	md := runCmd(t, "insights", csvPath)
	if !strings.Contains(md, "=== Recommendations (sales.csv) ===") {
		t.Fatalf("expected markdown header, got %q", md)
	}
}

func TestCLI_InsightsFromSavedID(t *testing.T) {
	home := isolate(t)
	csvPath := writeSales(t, home, "sales.csv")
	runCmd(t, "analyze", csvPath, "--save", "-o", filepath.Join(home, "a.md"))

	out := runCmd(t, "list")
	fields := strings.Fields(out)
	if len(fields) < 2 {
		t.Fatalf("unexpected list output %q", out)
	}
	id := fields[1]

	res := runCmd(t, "insights", id, "--json")
	if !strings.Contains(res, `"source": "`+id+`"`) {
		t.Fatalf("expected saved id as source, got %q", res)
	}
	if _, err := execCmd("insights", "does-not-exist"); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestCLI_InsightsAIDryRun(t *testing.T) {
	home := isolate(t)
	csvPath := writeSales(t, home, "sales.csv")

	out := runCmd(t, "insights", csvPath, "--ai", "--dry-run", "--provider", "groq", "--question", "Which brand should we push?")
	for _, want := range []string{"--dry-run", "[INSTRUCTIONS]", "Which brand should we push?", "[SALES ANALYSIS]", "llama-3.1-8b-instant"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in dry-run output:\n%s", want, out)
		}
	}

	limited := runCmd(t, "insights", csvPath, "--ai", "--dry-run", "--prompt-limit", "40")
	if !strings.Contains(limited, "Truncating") {
		t.Fatalf("expected truncation notice, got %q", limited)
	}
}

func TestCLI_BudgetLimitBlocksGeneration(t *testing.T) {
	home := isolate(t)
	csvPath := writeSales(t, home, "sales.csv")

	_, err := execCmd("insights", csvPath, "--ai", "--dry-run", "--provider", "openrouter",
		"--model", "openai/gpt-4o-mini", "--budget-limit", "0.0000001")
	if err == nil || !strings.Contains(err.Error(), "budget limit") {
		t.Fatalf("expected budget error, got %v", err)
	}
}

func TestCLI_ConfigSetShow(t *testing.T) {
	isolate(t)
	runCmd(t, "config", "set", "language", "vi")
	runCmd(t, "config", "set", "default_provider", "google")
	runCmd(t, "config", "set", "api_key", "gsk_1234567890")

	out := runCmd(t, "config", "show")
	for _, want := range []string{"language: vi", "default_provider: gemini", "api_key: gsk****890"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in config show:\n%s", want, out)
		}
	}
	if _, err := execCmd("config", "set", "default_provider", "nope"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if _, err := execCmd("config", "set", "language", "fr"); err == nil {
		t.Fatal("expected error for unsupported language")
	}
}

func TestCLI_ModelsShowProvider(t *testing.T) {
	isolate(t)
	out := runCmd(t, "models", "show", "--provider", "gemini")
	if !strings.Contains(out, "gemini-2.0-flash") {
		t.Fatalf("expected gemini preset in catalog:\n%s", out)
	}
	if strings.Contains(out, "llama-3.1-8b-instant") {
		t.Fatalf("provider filter leaked groq models:\n%s", out)
	}
}

// executeRaw runs the root command without resetting flags first, the way a
// long-lived process would reuse it.
func executeRaw(args ...string) (string, error) {
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	rootCmd.SetOut(nil)
	return buf.String(), err
}

func TestCLI_FlagsDoNotLeakBetweenRuns(t *testing.T) {
	home := isolate(t)
	csvPath := writeSales(t, home, "sales.csv")
	resetFlags(rootCmd)

	if _, err := executeRaw("analyze", csvPath, "--format", "json", "--save", "--recommendations",
		"--map", "revenue=Revenue", "--thousands", ".", "-o", filepath.Join(home, "a.json")); err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	if anaSave || anaRecs || anaFormat != "markdown" || anaOutputPath != "" || len(anaFlags.mappings) != 0 || anaFlags.thousands != "" {
		t.Fatalf("analyze flags kept values: save=%v recs=%v format=%q out=%q map=%v thousands=%q",
			anaSave, anaRecs, anaFormat, anaOutputPath, anaFlags.mappings, anaFlags.thousands)
	}
	out, err := executeRaw("analyze", csvPath)
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	if !strings.Contains(out, "[DATASET SUMMARY]") || strings.Contains(out, "Saved analysis") {
		t.Fatalf("second run inherited flags:\n%s", out)
	}

	if _, err := executeRaw("insights", csvPath, "--ai", "--dry-run", "--temp", "0.9",
		"--ollama-host", "http://10.0.0.1:11434", "--provider", "ollama", "--quiet"); err != nil {
		t.Fatalf("insights dry run: %v", err)
	}
	if insTemp != 0 || insOllamaHost != "" || insProvider != "" || insAI || insDryRun || insTimeoutSec != 180 {
		t.Fatalf("insights flags kept values: temp=%v host=%q provider=%q ai=%v dry=%v timeout=%d",
			insTemp, insOllamaHost, insProvider, insAI, insDryRun, insTimeoutSec)
	}
	md, err := executeRaw("insights", csvPath)
	if err != nil {
		t.Fatalf("second insights: %v", err)
	}
	if !strings.Contains(md, "=== Recommendations (sales.csv) ===") {
		t.Fatalf("second insights run should be rule based, got %q", md)
	}
}
