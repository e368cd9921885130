package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/genserv/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Service string // optional - filter to one service
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Database string       `json:"database" yaml:"database"`
	Calls    []trace.Call `json:"calls" yaml:"calls"`
	Stats    TraceStats   `json:"stats" yaml:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalCalls int `json:"total_calls" yaml:"total_calls"`
	Errors     int `json:"errors" yaml:"errors"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <trace.db>",
		Short: "Dump a recorded call trace",
		Long: `Read a diagnostics trace database and print the recorded calls in
sequence order.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Service, "service", "s", "", "filter to one service")

	return cmd
}

func runTrace(opts *TraceOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(path); err != nil {
		formatter.Error(ErrCodeTrace, fmt.Sprintf("trace database not found: %s", path), nil)
		return WrapExitError(ExitCommandError, "trace failed", err)
	}

	st, err := trace.Open(path)
	if err != nil {
		formatter.Error(ErrCodeTrace, err.Error(), nil)
		return WrapExitError(ExitCommandError, "trace failed", err)
	}
	defer st.Close()

	calls, err := st.List(context.Background(), opts.Service)
	if err != nil {
		formatter.Error(ErrCodeTrace, err.Error(), nil)
		return WrapExitError(ExitFailure, "trace failed", err)
	}

	result := TraceResult{Database: path, Calls: calls}
	result.Stats.TotalCalls = len(calls)
	for _, c := range calls {
		if c.Outcome == "error" {
			result.Stats.Errors++
		}
	}

	if opts.Format == "text" {
		for _, c := range calls {
			line := fmt.Sprintf("%6d  %-12s %-12s %-10s %-8s %6dus",
				c.Seq, c.Service, c.Function, c.Mode, c.Outcome, c.ElapsedUS)
			if c.Error != "" {
				line += "  " + c.Error
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d call(s), %d error(s)\n", result.Stats.TotalCalls, result.Stats.Errors)
		return nil
	}
	return formatter.Success(result)
}
