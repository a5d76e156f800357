package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/typedprefs/internal/prefs"
)

// shown is a decoded preference value together with its stored text.
type shown struct {
	desc  prefs.Descriptor
	value any
	text  string
}

func readValue(ctx context.Context, app *App, d prefs.Descriptor) (shown, error) {
	v, err := app.Handler.Value(ctx, d)
	if err != nil {
		return shown{}, err
	}
	text, err := d.FormatText(v)
	if err != nil {
		return shown{}, err
	}
	return shown{desc: d, value: v, text: text}, nil
}

// isJSON reports whether the value is structured and stored as JSON.
func (s shown) isJSON() bool {
	return !s.desc.IsPrimitive() && gjson.Valid(s.text)
}

// JSON returns the value as a JSON fragment.
func (s shown) JSON() (string, error) {
	if s.isJSON() {
		return s.text, nil
	}
	if s.desc.IsPrimitive() {
		return sonic.ConfigStd.MarshalToString(s.value)
	}
	return sonic.ConfigStd.MarshalToString(s.text)
}

// Render returns the value for terminal output. JSON values are indented.
func (s shown) Render(color bool) string {
	if !s.isJSON() {
		return s.text
	}
	return renderJSON(s.text, color)
}

// Inline returns the value on one line.
func (s shown) Inline() string {
	if s.isJSON() {
		return string(pretty.Ugly([]byte(s.text)))
	}
	return strings.ReplaceAll(s.text, "\n", `\n`)
}

// Field returns the element at a gjson path inside a JSON value.
func (s shown) Field(path string) (gjson.Result, error) {
	if !s.isJSON() {
		return gjson.Result{}, fmt.Errorf("%s is not a JSON value", s.desc.Key())
	}
	res := gjson.Get(s.text, path)
	if !res.Exists() {
		return gjson.Result{}, fmt.Errorf("field %q not found in %s", path, s.desc.Key())
	}
	return res, nil
}

// renderResult formats a gjson result: objects and arrays are indented,
// scalars are printed bare.
func renderResult(res gjson.Result, color bool) string {
	if res.IsObject() || res.IsArray() {
		return renderJSON(res.Raw, color)
	}
	return res.String()
}

func renderJSON(doc string, color bool) string {
	out := pretty.Pretty([]byte(doc))
	if color {
		out = pretty.Color(out, nil)
	}
	return strings.TrimRight(string(out), "\n")
}

func writeJSON(w io.Writer, doc string, color bool) error {
	_, err := fmt.Fprintln(w, renderJSON(doc, color))
	return err
}

// setField replaces the element at path in doc. A value that parses as
// JSON is inserted as is; anything else is inserted as a string.
func setField(doc, path, value string) (string, error) {
	if gjson.Valid(value) {
		return sjson.SetRaw(doc, path, value)
	}
	return sjson.Set(doc, path, value)
}

// escapeKey escapes a preference key for use as one gjson or sjson path
// component.
func escapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
