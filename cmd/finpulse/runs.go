package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/finpulse-backend/internal/app"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/pipeline"
	"github.com/yungbote/finpulse-backend/internal/modules/finance/query"
)

func pipelineCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "pipeline", Short: "Extraction and analysis pass"}
	var force bool
	run := &cobra.Command{
		Use:   "run",
		Short: "Extract missing finance profiles, then analyze every profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), app.Options{}, func(a *app.App) error {
				report, err := a.Runner.RunPipeline(cmd.Context(), pipeline.RunOptions{Force: force})
				if err != nil {
					return err
				}
				if jsonOutput {
					printJSON(report)
					return nil
				}
				printCounts("extraction", report.ExtractionCounts())
				printCounts("analysis", report.AnalysisCounts())
				fmt.Printf("finished in %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
				return nil
			})
		},
	}
	run.Flags().BoolVar(&force, "force", false, "Re-analyze users that already have a pattern")
	cmd.AddCommand(run)
	return cmd
}

func suggestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "suggest", Short: "Daily suggestion pass"}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Generate one suggestion for every user with a pattern",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), app.Options{}, func(a *app.App) error {
				report, err := a.Runner.RunSuggestions(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					printJSON(report)
					return nil
				}
				printCounts("suggestions", report.Counts())
				return nil
			})
		},
	})
	return cmd
}

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "query", Short: "Ad-hoc questions over finance profiles"}
	var (
		filters []string
		limit   int
	)
	summarize := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize profiles matching a top-level equality filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := query.ParseFilter(filters)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), app.Options{}, func(a *app.App) error {
				summary, err := a.Summarizer.Summarize(cmd.Context(), filter, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					printJSON(map[string]string{"summary": summary})
					return nil
				}
				fmt.Println(strings.TrimSpace(summary))
				return nil
			})
		},
	}
	summarize.Flags().StringArrayVar(&filters, "filter", nil, "key=value equality filter (repeatable)")
	summarize.Flags().IntVar(&limit, "limit", query.DefaultLimit, "Maximum profiles to summarize")
	cmd.AddCommand(summarize)
	return cmd
}
