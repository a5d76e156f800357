package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/dshills/typedprefs/internal/prefs"
)

// kindLabel is the stored kind, or "encoded" for values stored through a
// codec.
func kindLabel(d prefs.Descriptor) string {
	if d.IsPrimitive() {
		return d.Kind().String()
	}
	return "encoded"
}

func newKeysCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Describe the registered preferences",
		Long:  `Print the key, stored kind, default and description of every registered preference.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get(cmd.Context())
			if err != nil {
				return err
			}

			items := app.Handler.Items()
			defaults := make([]shown, 0, len(items))
			for _, d := range items {
				text, err := d.FormatText(d.DefaultAny())
				if err != nil {
					return err
				}
				defaults = append(defaults, shown{desc: d, value: d.DefaultAny(), text: text})
			}

			if provider.JSON {
				doc := `[]`
				for _, def := range defaults {
					d := def.desc
					raw, err := def.JSON()
					if err != nil {
						return err
					}
					obj, err := sjson.Set(`{}`, "key", d.Key())
					if err != nil {
						return err
					}
					if obj, err = sjson.Set(obj, "kind", kindLabel(d)); err != nil {
						return err
					}
					if obj, err = sjson.Set(obj, "type", d.Type().String()); err != nil {
						return err
					}
					if obj, err = sjson.SetRaw(obj, "default", raw); err != nil {
						return err
					}
					if obj, err = sjson.Set(obj, "description", d.Description()); err != nil {
						return err
					}
					if doc, err = sjson.SetRaw(doc, "-1", obj); err != nil {
						return err
					}
				}
				return writeJSON(app.Out, doc, app.Color())
			}

			keyWidth, kindWidth := 0, 0
			for _, def := range defaults {
				keyWidth = max(keyWidth, len(def.desc.Key()))
				kindWidth = max(kindWidth, len(kindLabel(def.desc)))
			}
			for _, def := range defaults {
				d := def.desc
				fmt.Fprintf(app.Out, "%-*s  %-*s  %s", keyWidth, d.Key(), kindWidth, kindLabel(d), def.Inline())
				if desc := d.Description(); desc != "" {
					fmt.Fprintf(app.Out, "  %s", app.DimColor(desc))
				}
				fmt.Fprintln(app.Out)
			}
			return nil
		},
	}
}
