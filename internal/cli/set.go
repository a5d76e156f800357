package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSetCmd(provider *AppProvider) *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a preference value",
		Long: `Change the value of a preference. The value is parsed as the
preference's type: true/false, integers, decimals, plain text, or JSON for
structured values.

--field replaces one element inside a JSON value (sjson path syntax). The
new element is inserted as JSON when it parses as JSON, otherwise as a
string.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := provider.Get(ctx)
			if err != nil {
				return err
			}

			d, err := app.Lookup(args[0])
			if err != nil {
				return err
			}

			text := args[1]
			if field != "" {
				cur, err := readValue(ctx, app, d)
				if err != nil {
					return err
				}
				if !cur.isJSON() {
					return fmt.Errorf("--field needs a JSON value; %s is %s", d.Key(), d.Kind())
				}
				if text, err = setField(cur.text, field, args[1]); err != nil {
					return fmt.Errorf("setting field %q: %w", field, err)
				}
			}

			v, err := d.ParseText(text)
			if err != nil {
				return err
			}
			if err := app.Handler.SetValue(ctx, d, v); err != nil {
				return err
			}

			updated, err := readValue(ctx, app, d)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s %s = %s\n", app.SuccessColor("Set"), d.Key(), updated.Inline())
			return nil
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "Element inside a JSON value (sjson path)")

	return cmd
}
