package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/genserv/internal/compile"
	"github.com/roach88/genserv/internal/gen"
)

// EmitOptions holds flags for the emit command.
type EmitOptions struct {
	*RootOptions
	Service string // optional - emit only this service
}

// EmittedService pairs a service name with its generated rendering.
type EmittedService struct {
	Service string `json:"service" yaml:"service"`
	Source  string `json:"source" yaml:"source"`
}

// NewEmitCommand creates the emit command: the diagnostics surface that
// prints the generated pure/worker/API code for inspection.
func NewEmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "emit <decl.cue>",
		Short: "Emit the generated code for inspection",
		Long: `Compile a declaration file and print the generated pure implementation,
client API, and worker wiring for each service. Inspection only; the
output has no runtime effect.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Service, "service", "s", "", "emit only the named service")

	return cmd
}

func runEmit(opts *EmitOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	services, err := compile.Load(path)
	if err != nil {
		formatter.Error(ErrCodeCompile, err.Error(), nil)
		return WrapExitError(ExitFailure, "emit failed", err)
	}

	var emitted []EmittedService
	for _, svc := range services {
		if opts.Service != "" && svc.Name != opts.Service {
			continue
		}
		src, err := gen.Emit(svc)
		if err != nil {
			formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitFailure, "emit failed", err)
		}
		emitted = append(emitted, EmittedService{Service: svc.Name, Source: src})
	}

	if len(emitted) == 0 {
		err := fmt.Errorf("no service %q in %s", opts.Service, path)
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "emit failed", err)
	}

	if opts.Format == "text" {
		for _, e := range emitted {
			fmt.Fprint(cmd.OutOrStdout(), e.Source)
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return nil
	}
	return formatter.Success(emitted)
}
