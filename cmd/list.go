package cmd

import (
	"fmt"

	"github.com/KaramelBytes/datana-cli/internal/analysis"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved analyses, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		sums, err := openStore().List()
		if err != nil {
			return err
		}
		if len(sums) == 0 {
			fmt.Fprintln(out, "(no saved analyses)")
			return nil
		}
		for _, s := range sums {
			src := s.Source
			if s.Sheet != "" {
				src += " [" + s.Sheet + "]"
			}
			fmt.Fprintf(out, "- %s  %s  rows=%d  revenue=%s  %s\n",
				s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Rows, analysis.FormatAmount(s.Revenue), src)
		}
		return nil
	},
}

var (
	showFormat string
	showRecs   bool
	showLang   string
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openStore().Load(args[0])
		if err != nil {
			return err
		}
		if e.Result == nil {
			return fmt.Errorf("saved analysis %s has no result", e.ID)
		}
		s := sheetFlags{lang: showLang}
		data, err := renderAnalysis(e.Result, e.ID, showFormat, showRecs, s.language())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a saved analysis",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := openStore().Delete(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted analysis %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(rmCmd)
	showCmd.Flags().StringVar(&showFormat, "format", "markdown", "output format: markdown|json")
	showCmd.Flags().BoolVar(&showRecs, "recommendations", false, "append rule-based recommendations")
	showCmd.Flags().StringVar(&showLang, "lang", "", "language for recommendations: en|vi (default from config)")
}
