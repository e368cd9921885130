package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/genserv/internal/builtin"
	"github.com/roach88/genserv/internal/decl"
	"github.com/roach88/genserv/internal/service"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Mode    string
	Trace   string
	Timeout time.Duration
}

// CallResult is the structured output of one call.
type CallResult struct {
	Service  string `json:"service" yaml:"service"`
	Function string `json:"function" yaml:"function"`
	Mode     string `json:"mode" yaml:"mode"`
	Value    any    `json:"value" yaml:"value"`
}

// NewCallCommand creates the call command, which runs one of the builtin
// example services end to end: start, call once through the client API,
// stop.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <service> <function> [args...]",
		Short: "Invoke a builtin example service",
		Long: `Start a builtin example service (counter, kvstore), invoke one of its
public functions through the generated client API, print the reply, and
stop the service. Arguments are parsed as JSON, falling back to strings.

Example:
  genserv call counter fib 20
  genserv call kvstore put answer 42 --mode pooled`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, args[0], args[1], args[2:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", string(decl.Anonymous), "deployment mode (inline|anonymous|named|pooled)")
	cmd.Flags().StringVar(&opts.Trace, "trace", "", "record the call into a SQLite trace database")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "call timeout")

	return cmd
}

func runCall(opts *CallOptions, name, fn string, rawArgs []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	mode := decl.Mode(opts.Mode)
	def := builtin.Known(name, mode)
	if def == nil {
		err := fmt.Errorf("unknown builtin service %q (want counter or kvstore)", name)
		formatter.Error(ErrCodeCall, err.Error(), nil)
		return WrapExitError(ExitCommandError, "call failed", err)
	}
	if opts.Trace != "" {
		def.Diagnostics = true
	}

	args := make([]any, len(rawArgs))
	for i, raw := range rawArgs {
		args[i] = parseArg(raw)
	}

	var buildOpts []service.Option
	buildOpts = append(buildOpts, service.WithCallTimeout(opts.Timeout))
	if opts.Trace != "" {
		buildOpts = append(buildOpts, service.WithTrace(opts.Trace))
	}

	svc, err := service.Build(def, buildOpts...)
	if err != nil {
		formatter.Error(ErrCodeCall, err.Error(), nil)
		return WrapExitError(ExitFailure, "call failed", err)
	}
	defer svc.Close()

	value, err := invoke(svc, mode, fn, args)
	if err != nil {
		formatter.Error(ErrCodeCall, err.Error(), nil)
		return WrapExitError(ExitFailure, "call failed", err)
	}

	if opts.Format == "text" {
		return formatter.Success(fmt.Sprintf("%v", value))
	}
	return formatter.Success(CallResult{Service: name, Function: fn, Mode: opts.Mode, Value: value})
}

// invoke routes through the mode-appropriate call surface: the inline API
// for inline mode, a running handle otherwise.
func invoke(svc *service.Service, mode decl.Mode, fn string, args []any) (any, error) {
	ctx := context.Background()

	if mode == decl.Inline {
		api, err := svc.Inline()
		if err != nil {
			return nil, err
		}
		f, ok := api[fn]
		if !ok {
			return nil, fmt.Errorf("no public function %q", fn)
		}
		value, _, err := f(svc.Decl().InitialState, args...)
		return value, err
	}

	h, err := svc.Run(ctx)
	if err != nil {
		return nil, err
	}
	defer h.Stop()
	return h.Call(ctx, fn, args...)
}

// parseArg decodes a command-line argument as JSON, falling back to a raw
// string. "42" becomes float64(42), "[1,2]" a slice, "answer" a string.
func parseArg(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
