package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/finpulse-backend/internal/app"
)

var (
	version    = "dev"
	jsonOutput bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "finpulse",
		Short: "Personal finance enrichment pipeline",
		Long: `finpulse turns raw user records into structured finance profiles,
derives a spending pattern per user and produces short daily suggestions.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{"version": version})
				return
			}
			fmt.Printf("finpulse %s\n", version)
		},
	})
	rootCmd.AddCommand(pipelineCmd(), suggestCmd(), queryCmd(), rawCmd(), serveCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// withApp builds the application for one command and always closes it.
func withApp(ctx context.Context, opts app.Options, fn func(a *app.App) error) error {
	a, err := app.New(ctx, opts)
	if err != nil {
		return err
	}
	runErr := fn(a)
	if err := a.Close(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func printCounts[K ~string](title string, counts map[K]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	fmt.Printf("%s:\n", title)
	if len(keys) == 0 {
		fmt.Println("  (no users)")
	}
	for _, k := range keys {
		fmt.Printf("  %-18s %d\n", k, counts[K(k)])
	}
}
