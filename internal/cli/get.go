package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"
)

func newGetCmd(provider *AppProvider) *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a preference value",
		Long: `Print the value of a preference. A preference with no stored value
prints its default, which is written to the store.

Structured values are JSON. --field selects an element inside them using
gjson path syntax, for example --field list.0.`,
		Args: cobra.ExactArgs(1),
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
			v, err := readValue(ctx, app, d)
			if err != nil {
				return err
			}

			if field != "" {
				res, err := v.Field(field)
				if err != nil {
					return err
				}
				if provider.JSON {
					doc, err := sjson.Set(`{}`, "key", d.Key())
					if err != nil {
						return err
					}
					if doc, err = sjson.Set(doc, "field", field); err != nil {
						return err
					}
					if doc, err = sjson.SetRaw(doc, "value", res.Raw); err != nil {
						return err
					}
					return writeJSON(app.Out, doc, app.Color())
				}
				fmt.Fprintln(app.Out, renderResult(res, app.Color()))
				return nil
			}

			if provider.JSON {
				raw, err := v.JSON()
				if err != nil {
					return err
				}
				doc, err := sjson.Set(`{}`, "key", d.Key())
				if err != nil {
					return err
				}
				if doc, err = sjson.SetRaw(doc, "value", raw); err != nil {
					return err
				}
				return writeJSON(app.Out, doc, app.Color())
			}

			fmt.Fprintln(app.Out, v.Render(app.Color()))
			return nil
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "Element inside a JSON value (gjson path)")

	return cmd
}
