package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newClearCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <key>...",
		Short: "Reset preferences to their defaults",
		Long: `Remove the stored values of the given preferences. The next read
returns the default.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := provider.Get(ctx)
			if err != nil {
				return err
			}

			for _, key := range args {
				d, err := app.Lookup(key)
				if err != nil {
					return err
				}
				if err := app.Handler.Clear(ctx, d); err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "%s %s\n", app.SuccessColor("Cleared"), key)
			}
			return nil
		},
	}
}

func newClearAllCmd(provider *AppProvider) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear-all",
		Short: "Remove every stored value in the namespace",
		Long: `Remove every stored value in the namespace, including keys that no
registered preference uses. Requires --force.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return errors.New("clear-all removes every stored value; pass --force to confirm")
			}

			ctx := cmd.Context()
			app, err := provider.Get(ctx)
			if err != nil {
				return err
			}
			if err := app.Handler.ClearAll(ctx); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s all preferences in %s\n", app.SuccessColor("Cleared"), app.Handler.Name())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Confirm removal")

	return cmd
}
