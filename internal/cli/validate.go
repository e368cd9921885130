package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/genserv/internal/compile"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidationSummary is the structured result of validating a declaration
// file.
type ValidationSummary struct {
	File     string   `json:"file" yaml:"file"`
	Services []string `json:"services" yaml:"services"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <decl.cue>",
		Short: "Validate a service declaration file",
		Long: `Compile a CUE service declaration and check it against the model
invariants: mode, pool bounds, service name, clause signatures.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	services, err := compile.Load(path)
	if err != nil {
		formatter.Error(ErrCodeCompile, err.Error(), nil)
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	summary := ValidationSummary{File: path}
	for _, svc := range services {
		formatter.VerboseLog("validated service %s (mode %s, %d functions)",
			svc.Name, svc.Mode, len(svc.Clauses))
		summary.Services = append(summary.Services, svc.Name)
	}

	if opts.Format == "text" {
		return formatter.Success(fmt.Sprintf("%s: %d service(s) valid", path, len(services)))
	}
	return formatter.Success(summary)
}
