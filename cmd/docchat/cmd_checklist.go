package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/docchat/internal/checklist"
)

var (
	checklistDocs  []string
	checklistItems []string
)

func init() {
	checklistAnalyzeCmd.Flags().StringSliceVar(&checklistDocs, "doc", nil, "document name to analyze (repeatable)")
	checklistAnalyzeCmd.Flags().StringSliceVar(&checklistItems, "item", nil, "checklist item (repeatable, defaults apply when omitted)")
	checklistCmd.AddCommand(checklistAnalyzeCmd, checklistDefaultsCmd)
	rootCmd.AddCommand(checklistCmd)
}

var checklistCmd = &cobra.Command{
	Use:   "checklist",
	Short: "Analyze documents against a checklist",
}

var checklistDefaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the default checklist items",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for i, item := range checklist.DefaultItems {
			fmt.Fprintf(os.Stdout, "%d. %s\n", i+1, item)
		}
	},
}

var checklistAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Classify checklist items as Yes, No or Partial",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		report, err := a.chat.AnalyzeChecklist(cmd.Context(), checklist.Request{
			Documents: checklistDocs,
			Items:     checklistItems,
		})
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ITEM\tSTATUS\tREMARKS")
		for _, r := range report.Results {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Item, r.Status, r.Remarks)
		}
		return tw.Flush()
	},
}
