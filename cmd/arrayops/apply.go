package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jbweber/arrayops/api/v1alpha1"
	"github.com/jbweber/arrayops/internal/binding"
	"github.com/jbweber/arrayops/internal/loader"
	"github.com/jbweber/arrayops/internal/unity"
)

var (
	applyFile       string
	applyStatusFile string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply HostBinding documents",
	Long: `Attach LUNs to hosts as described by HostBinding documents.

Each binding names a host and the LUNs it should see. Apply resolves the
host (registering it when createHost is set), syncs its initiators when
they are listed, attaches missing LUNs and detaches LUNs the binding
attached earlier but no longer lists. Bindings are applied in file order;
a failing binding does not stop the rest.

Example:
  arrayops apply -f bindings.yaml --status-file bindings.status.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVarP(&applyFile, "file", "f", "", "HostBinding file (required)")
	applyCmd.Flags().StringVar(&applyStatusFile, "status-file", "", "write the bindings with their status here")
	_ = applyCmd.MarkFlagRequired("file")
}

func runApply(cmd *cobra.Command, args []string) error {
	bindings, err := loader.LoadFromFile(applyFile)
	if err != nil {
		return fmt.Errorf("failed to load bindings: %w", err)
	}

	var results []binding.Result
	applyErr := withUnity(func(ctx context.Context, sys *unity.System) error {
		var err error
		results, err = binding.ApplyAll(ctx, binding.NewUnity(sys), bindings, sys.Logger())
		return err
	})

	for i, r := range results {
		switch {
		case bindings[i].GetPhase() == v1alpha1.BindingPhaseFailed:
			fmt.Printf("%s %s %s\n", failMark, r.Binding, warnText("failed"))
		case !r.Changed():
			fmt.Printf("%s %s unchanged\n", okMark, r.Binding)
		default:
			fmt.Printf("%s %s applied", okMark, r.Binding)
			if len(r.Attached) > 0 {
				fmt.Printf(", attached: %s", strings.Join(r.Attached, ", "))
			}
			if len(r.Detached) > 0 {
				fmt.Printf(", detached: %s", strings.Join(r.Detached, ", "))
			}
			if r.InitiatorsChanged > 0 {
				fmt.Printf(", %d initiator(s) changed", r.InitiatorsChanged)
			}
			fmt.Println()
		}
	}

	if applyStatusFile != "" {
		if err := loader.SaveToFile(bindings, applyStatusFile); err != nil {
			fmt.Printf("%s %s\n", failMark, warnText("failed to save status: "+err.Error()))
		}
	}
	if outputFormat != "table" || applyErr != nil {
		if err := printBindings(bindings); err != nil {
			return err
		}
	}
	return applyErr
}
