package commands

import (
	"context"
	"fmt"
	"os"

	"pastpapers-backend/internal/components/serviceutil"
	"pastpapers-backend/internal/components/telemetry"
	"pastpapers-backend/internal/config"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var verbose bool

// stack is opened lazily, boards and levels never need it.
var stack *config.Stack

var rootCmd = &cobra.Command{
	Use:   "papers-cli",
	Short: "papers-cli browses, downloads and merges past exam papers.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stack != nil {
			stack.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStack(cmd *cobra.Command) *config.Stack {
	if stack != nil {
		return stack
	}

	cfg, err := config.Load()
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	cfg.Verbose = cfg.Verbose || verbose

	stack, err = config.Open(cmd.Context(), cfg, telemetry.SlogAPI{})
	if err != nil {
		serviceutil.Fatal("init discovery", err)
	}
	return stack
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
