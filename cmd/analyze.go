package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/datana-cli/internal/analysis"
	"github.com/KaramelBytes/datana-cli/internal/colmap"
	cfgpkg "github.com/KaramelBytes/datana-cli/internal/config"
	"github.com/KaramelBytes/datana-cli/internal/insights"
	"github.com/KaramelBytes/datana-cli/internal/parser"
	"github.com/KaramelBytes/datana-cli/internal/store"
	"github.com/apex/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// sheetFlags are the reading and cleaning flags shared by analyze,
// analyze-batch and insights.
type sheetFlags struct {
	sheetName  string
	sheetIndex int
	maxRows    int
	delimiter  string
	decimal    string
	thousands  string
	mappings   []string
	noRecords  bool
	lang       string
}

func (s *sheetFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&s.sheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	fs.IntVar(&s.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	fs.IntVar(&s.maxRows, "max-rows", 0, "maximum rows to process (0 = config max_rows or unlimited)")
	fs.StringVar(&s.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (auto-detect if omitted)")
	fs.StringVar(&s.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	fs.StringVar(&s.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	fs.StringArrayVar(&s.mappings, "map", nil, "force a column: field=Header (repeatable; fields: product, quantity, price, profit, brand, category, revenue, date, region)")
	fs.BoolVar(&s.noRecords, "no-records", false, "omit cleaned rows from JSON output and saved analyses")
	fs.StringVar(&s.lang, "lang", "", "language for recommendations: en|vi (default from config)")
}

func (s *sheetFlags) parserOptions() (parser.Options, error) {
	opt := parser.Options{SheetName: s.sheetName, SheetIndex: s.sheetIndex, MaxRows: s.maxRows}
	if opt.MaxRows == 0 && cfg != nil {
		opt.MaxRows = cfg.MaxRows
	}
	if cfg != nil {
		opt.MaxBytes = cfg.MaxUploadBytes()
		if opt.MaxBytes == 0 {
			opt.MaxBytes = -1
		}
	}
	switch s.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	case "|":
		opt.Delimiter = '|'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", s.delimiter)
	}
	return opt, nil
}

func (s *sheetFlags) analysisOptions() (analysis.Options, error) {
	opt := analysis.DefaultOptions()
	opt.KeepRecords = !s.noRecords
	dec, th := s.decimal, s.thousands
	if cfg != nil {
		if dec == "" {
			dec = cfg.DecimalSeparator
		}
		if th == "" {
			th = cfg.ThousandsSeparator
		}
	}
	switch strings.ToLower(strings.TrimSpace(dec)) {
	case ",", "comma":
		opt.Number.DecimalSeparator = ','
	case ".", "dot":
		opt.Number.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", dec)
	}
	switch strings.ToLower(th) {
	case ",", "comma":
		opt.Number.ThousandsSeparator = ','
	case ".", "dot":
		opt.Number.ThousandsSeparator = '.'
	case "space", " ":
		opt.Number.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", th)
	}
	if opt.Number.DecimalSeparator != 0 && opt.Number.DecimalSeparator == opt.Number.ThousandsSeparator {
		return opt, fmt.Errorf("--decimal and --thousands must differ")
	}
	overrides, err := colmap.ParseOverrides(s.mappings)
	if err != nil {
		return opt, err
	}
	opt.Overrides = overrides
	return opt, nil
}

func (s *sheetFlags) language() string {
	if s.lang != "" {
		return insights.NormalizeLang(s.lang)
	}
	if cfg != nil {
		return insights.NormalizeLang(cfg.Language)
	}
	return insights.LangEnglish
}

// analyzeFile loads and analyzes one spreadsheet.
func analyzeFile(path string, s *sheetFlags) (*analysis.Result, error) {
	popt, err := s.parserOptions()
	if err != nil {
		return nil, err
	}
	aopt, err := s.analysisOptions()
	if err != nil {
		return nil, err
	}
	t, err := parser.Load(path, popt)
	if err != nil {
		return nil, err
	}
	res, err := analysis.Analyze(t, aopt)
	if err != nil {
		return nil, err
	}
	fields := log.Fields{"file": path, "rows": res.KPI.RowCount, "skipped": res.KPI.SkippedRows}
	for f, a := range res.Columns {
		fields[string(f)] = a.Header
	}
	log.WithFields(fields).Debug("columns detected")
	for _, w := range res.Warnings {
		log.WithField("file", path).Debug(w)
	}
	return res, nil
}

// analysisDoc is the JSON shape written by analyze.
type analysisDoc struct {
	ID              string                    `json:"id,omitempty"`
	Analysis        *analysis.Result          `json:"analysis"`
	Recommendations *insights.Recommendations `json:"recommendations,omitempty"`
}

// renderAnalysis renders r as markdown or JSON, optionally with rule-based
// recommendations.
func renderAnalysis(r *analysis.Result, id, format string, withRecs bool, lang string) ([]byte, error) {
	var recs *insights.Recommendations
	if withRecs {
		rec := insights.Recommend(r, insights.Options{Lang: lang})
		recs = &rec
	}
	switch strings.ToLower(format) {
	case "", "markdown", "md":
		var b strings.Builder
		b.WriteString(r.Markdown())
		if recs != nil {
			b.WriteString("\n[RECOMMENDATIONS]\n")
			b.WriteString(recs.Markdown())
		}
		return []byte(b.String()), nil
	case "json":
		data, err := json.MarshalIndent(analysisDoc{ID: id, Analysis: r, Recommendations: recs}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal analysis: %w", err)
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported --format: %s (use markdown|json)", format)
	}
}

func openStore() *store.Store {
	dir := ""
	if cfg != nil {
		dir = cfg.StoreDir
	}
	if dir == "" {
		if base, err := cfgpkg.Dir(); err == nil {
			dir = filepath.Join(base, "analyses")
		} else {
			dir = ".datana-analyses"
		}
	}
	return store.New(dir)
}

var (
	anaFlags      sheetFlags
	anaOutputPath string
	anaFormat     string
	anaSave       bool
	anaRecs       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a sales spreadsheet (CSV/TSV/XLSX) and report KPIs and groupings",
	Example: `  datana analyze sales.xlsx
  datana analyze orders.csv --format json --output orders.json
  datana analyze data.csv --map revenue="Thành tiền" --map date=NgayBan --recommendations --lang vi
  datana analyze report.xlsx --sheet-name "Tháng 3" --save`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer resetFlagSet(cmd.Flags())
		path := args[0]
		res, err := analyzeFile(path, &anaFlags)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		id := ""
		if anaSave {
			e, err := openStore().Save(res)
			if err != nil {
				return fmt.Errorf("save analysis: %w", err)
			}
			id = e.ID
		}
		data, err := renderAnalysis(res, id, anaFormat, anaRecs, anaFlags.language())
		if err != nil {
			return err
		}
		if err := writeOrPrint(out, anaOutputPath, data); err != nil {
			return err
		}
		if id != "" {
			fmt.Fprintf(out, "✓ Saved analysis %s\n", id)
		}
		return nil
	},
}

// writeOrPrint writes data to path, or to out when path is empty.
func writeOrPrint(out io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(out, "✓ Wrote analysis to %s\n", path)
	return nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	anaFlags.bind(analyzeCmd.Flags())
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the analysis")
	analyzeCmd.Flags().StringVar(&anaFormat, "format", "markdown", "output format: markdown|json")
	analyzeCmd.Flags().BoolVar(&anaSave, "save", false, "save the analysis for later insights/show")
	analyzeCmd.Flags().BoolVar(&anaRecs, "recommendations", false, "append rule-based recommendations")
}
