package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/datana-cli/internal/cleaning"
	"github.com/KaramelBytes/datana-cli/internal/parser"
	"github.com/KaramelBytes/datana-cli/internal/utils"
	"github.com/apex/log"
	"github.com/spf13/cobra"
)

var (
	abFlags  sheetFlags
	abOutDir string
	abFormat string
	abSave   bool
	abRecs   bool
	abQuiet  bool
)

// expandInputs resolves globs and literal paths, dropping duplicates and
// unsupported extensions.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			if !parser.Supported(m) {
				log.WithField("file", m).Debug("skipping unsupported file")
				continue
			}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

// outputPath picks <dir>/<stem>[__sheet-x].analysis.<ext>, adding __N when
// the name is taken.
func outputPath(dir, input, sheet, ext string) string {
	base := utils.StemName(input)
	if sheet != "" {
		var b strings.Builder
		for _, r := range cleaning.Fold(sheet) {
			switch {
			case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
				b.WriteRune(r)
			case r == ' ' || r == '-' || r == '_':
				b.WriteRune('-')
			}
		}
		s := strings.Trim(b.String(), "-")
		if s == "" {
			s = "sheet"
		}
		base += "__sheet-" + s
	}
	out := filepath.Join(dir, base+".analysis."+ext)
	for idx := 2; ; idx++ {
		if _, err := os.Stat(out); os.IsNotExist(err) {
			return out
		}
		out = filepath.Join(dir, fmt.Sprintf("%s__%d.analysis.%s", base, idx, ext))
	}
}

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple CSV/TSV/TXT/XLSX files with progress",
	Example: `  datana analyze-batch "exports/*.xlsx" --out-dir reports
  datana analyze-batch a.csv b.csv --format json --save --quiet`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer resetFlagSet(cmd.Flags())
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		ext := "md"
		if strings.EqualFold(abFormat, "json") {
			ext = "json"
		}
		if abOutDir != "" {
			if err := utils.EnsureDir(abOutDir); err != nil {
				return fmt.Errorf("create --out-dir: %w", err)
			}
		}
		out := cmd.OutOrStdout()
		st := openStore()
		var failed []string
		total := len(files)
		for i, path := range files {
			if !abQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			res, err := analyzeFile(path, &abFlags)
			if err != nil {
				log.WithError(err).WithField("file", path).Error("analysis failed")
				failed = append(failed, filepath.Base(path))
				continue
			}
			id := ""
			if abSave {
				e, err := st.Save(res)
				if err != nil {
					return fmt.Errorf("save analysis: %w", err)
				}
				id = e.ID
			}
			data, err := renderAnalysis(res, id, abFormat, abRecs, abFlags.language())
			if err != nil {
				return err
			}
			switch {
			case abOutDir != "":
				dest := outputPath(abOutDir, path, abFlags.sheetName, ext)
				if err := os.WriteFile(dest, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", dest, err)
				}
				if !abQuiet {
					fmt.Fprintf(out, "✓ Wrote %s\n", dest)
				}
			case !abQuiet:
				fmt.Fprintln(out, string(data))
			}
			if id != "" && !abQuiet {
				fmt.Fprintf(out, "✓ Saved analysis %s\n", id)
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d of %d files failed: %s", len(failed), total, strings.Join(failed, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	abFlags.bind(analyzeBatchCmd.Flags())
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "directory for per-file reports (stdout if omitted)")
	analyzeBatchCmd.Flags().StringVar(&abFormat, "format", "markdown", "output format: markdown|json")
	analyzeBatchCmd.Flags().BoolVar(&abSave, "save", false, "save each analysis for later insights/show")
	analyzeBatchCmd.Flags().BoolVar(&abRecs, "recommendations", false, "append rule-based recommendations")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
}
