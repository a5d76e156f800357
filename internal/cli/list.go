package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"
)

// updateTimer is implemented by stores that record modification times.
type updateTimer interface {
	UpdatedAt(ctx context.Context, key string) (time.Time, bool, error)
}

func newListCmd(provider *AppProvider) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List preferences and their values",
		Long: `List the registered preferences and their current values. Defaults
of preferences with no stored value are written to the store.

With --all, stored keys that no registered preference uses are listed too.
Stores that record modification times show them in a third column.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := provider.Get(ctx)
			if err != nil {
				return err
			}

			var values []shown
			for _, d := range app.Handler.Items() {
				v, err := readValue(ctx, app, d)
				if err != nil {
					return err
				}
				values = append(values, v)
			}

			var extra []string
			if all {
				for key := range app.Handler.Cached() {
					if _, ok := app.Handler.DescriptorByKey(key); !ok {
						extra = append(extra, key)
					}
				}
				slices.Sort(extra)
			}

			if provider.JSON {
				return listJSON(app, values, extra)
			}

			width := 0
			for _, v := range values {
				width = max(width, len(v.desc.Key()))
			}
			for _, key := range extra {
				width = max(width, len(key))
			}

			timer, hasTimes := app.Store.(updateTimer)
			for _, v := range values {
				line := fmt.Sprintf("%-*s  %s", width, v.desc.Key(), v.Inline())
				if hasTimes {
					at, ok, err := timer.UpdatedAt(ctx, v.desc.Key())
					if err != nil {
						return err
					}
					if ok {
						line += "  " + app.DimColor(at.Local().Format(time.RFC3339))
					}
				}
				fmt.Fprintln(app.Out, line)
			}

			cached := app.Handler.Cached()
			for _, key := range extra {
				text := strings.ReplaceAll(cached[key].Text(), "\n", `\n`)
				fmt.Fprintf(app.Out, "%-*s  %s  %s\n", width, key, text, app.DimColor("(unregistered)"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include stored keys of unregistered preferences")

	return cmd
}

func listJSON(app *App, values []shown, extra []string) error {
	doc := `{}`
	for _, v := range values {
		raw, err := v.JSON()
		if err != nil {
			return err
		}
		if doc, err = sjson.SetRaw(doc, escapeKey(v.desc.Key()), raw); err != nil {
			return err
		}
	}

	cached := app.Handler.Cached()
	for _, key := range extra {
		var err error
		if doc, err = sjson.Set(doc, escapeKey(key), cached[key].Interface()); err != nil {
			return err
		}
	}
	return writeJSON(app.Out, doc, app.Color())
}
