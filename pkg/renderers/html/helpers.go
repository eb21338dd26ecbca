package html

import (
	"sort"
	"strings"

	theme "github.com/goliatone/go-theme"

	"github.com/observatory/quicklook/pkg/widgets"
)

func controlID(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	return "ql-" + trimmed
}

func labelSupportsFor(widget string) bool {
	switch widget {
	case widgets.WidgetCheckboxGroup, widgets.WidgetDateRange, widgets.WidgetToggle:
		return false
	default:
		return true
	}
}

// themeData flattens a resolved theme configuration into the map shape the
// form template consumes: a stylesheet URL plus an inline CSS variable block.
func themeData(cfg *theme.RendererConfig) map[string]any {
	if cfg == nil {
		return nil
	}

	out := map[string]any{
		"name":    cfg.Theme,
		"variant": cfg.Variant,
	}

	if len(cfg.CSSVars) > 0 {
		keys := make([]string, 0, len(cfg.CSSVars))
		for key := range cfg.CSSVars {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var vars strings.Builder
		for _, key := range keys {
			vars.WriteString(key)
			vars.WriteString(":")
			vars.WriteString(cfg.CSSVars[key])
			vars.WriteString(";")
		}
		out["cssVars"] = vars.String()
	}

	if cfg.AssetURL != nil {
		if url := cfg.AssetURL("stylesheet"); url != "" {
			out["stylesheet"] = url
		}
	}
	return out
}

func truthyValue(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s == "true" || s == "on" || s == "1" || s == "checked"
	case []string:
		return len(v) > 0 && truthyValue(v[0])
	default:
		return false
	}
}

func lookupValue(values map[string]any, name string) (any, bool) {
	if len(values) == 0 {
		return nil, false
	}
	raw, ok := values[name]
	return raw, ok
}
