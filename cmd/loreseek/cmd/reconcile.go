package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "reconcile [base]",
		Short: "Resolve an interrupted alias swap",
		Long: `A rebuild whose alias swap was interrupted leaves its base blocked:
both the old and the staged generation are kept and further rebuilds
are refused until an operator confirms which generation is live.

Inspect the collections with 'loreseek status', delete the generation
that should not survive, then run 'loreseek reconcile <base>' to
unblock the base.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if list || len(args) == 0 {
				return runReconcileList(cmd)
			}
			return runReconcileClear(cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List bases awaiting reconciliation")
	return cmd
}

func runReconcileList(cmd *cobra.Command) error {
	ctx := cmd.Context()

	app, err := newApp(ctx, appOptions{staticEmbedder: true})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	bases, err := app.Manager.Reconciliations(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(bases) == 0 {
		fmt.Fprintln(out, "No bases awaiting reconciliation.")
		return nil
	}
	for _, base := range bases {
		fmt.Fprintln(out, base)
	}
	return nil
}

func runReconcileClear(cmd *cobra.Command, base string) error {
	ctx := cmd.Context()

	app, err := newApp(ctx, appOptions{staticEmbedder: true})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := app.Manager.ClearReconciliation(ctx, base); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared reconciliation marker for %s. Rebuilds are unblocked.\n", base)
	return nil
}
