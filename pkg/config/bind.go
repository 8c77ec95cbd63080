package config

import (
	"fmt"
	"sort"
)

// deepMerge merges overlay into base. Nested tables merge recursively;
// arrays and scalars from the overlay replace the base value.
func deepMerge(base, overlay map[string]interface{}) {
	for key, ov := range overlay {
		if bt, ok := base[key].(map[string]interface{}); ok {
			if ot, ok := ov.(map[string]interface{}); ok {
				deepMerge(bt, ot)
				continue
			}
		}
		base[key] = ov
	}
}

// binder walks a decoded TOML document and builds a Config, collecting
// every problem instead of stopping at the first.
type binder struct {
	problems []string
}

func (b *binder) errf(format string, args ...interface{}) {
	b.problems = append(b.problems, fmt.Sprintf(format, args...))
}

// bindConfig converts a merged TOML document into a typed Config.
// Unknown keys in closed sections are rejected with a suggestion for
// the nearest known key.
func bindConfig(raw map[string]interface{}) (*Config, error) {
	b := &binder{}
	cfg := DefaultConfig()

	b.checkKeys("", raw, []string{
		"bar", "widgets", "icons", "workspace", "theme", "osd", "advanced",
	})

	if tbl := b.table(raw, "bar"); tbl != nil {
		b.bindBar(tbl, &cfg.Bar)
	}
	if tbl := b.table(raw, "widgets"); tbl != nil {
		b.bindWidgets(tbl, &cfg.Widgets)
	}
	if tbl := b.table(raw, "icons"); tbl != nil {
		b.checkKeys("icons", tbl, []string{"theme", "weight"})
		b.str(tbl, "icons", "theme", &cfg.Icons.Theme)
		b.integer(tbl, "icons", "weight", &cfg.Icons.Weight)
	}
	if tbl := b.table(raw, "workspace"); tbl != nil {
		b.checkKeys("workspace", tbl, []string{"backend"})
		b.str(tbl, "workspace", "backend", &cfg.Workspace.Backend)
	}
	if tbl := b.table(raw, "theme"); tbl != nil {
		b.bindTheme(tbl, &cfg.Theme)
	}
	if tbl := b.table(raw, "osd"); tbl != nil {
		b.checkKeys("osd", tbl, []string{"enabled", "position", "timeout_ms"})
		b.boolean(tbl, "osd", "enabled", &cfg.OSD.Enabled)
		b.str(tbl, "osd", "position", &cfg.OSD.Position)
		b.integer(tbl, "osd", "timeout_ms", &cfg.OSD.TimeoutMS)
	}
	if tbl := b.table(raw, "advanced"); tbl != nil {
		b.checkKeys("advanced", tbl, []string{"pango_font_rendering"})
		b.boolean(tbl, "advanced", "pango_font_rendering", &cfg.Advanced.PangoFontRendering)
	}

	if len(b.problems) > 0 {
		return nil, &ValidationError{Problems: b.problems}
	}
	return cfg, nil
}

func (b *binder) bindBar(tbl map[string]interface{}, bar *BarConfig) {
	b.checkKeys("bar", tbl, []string{
		"size", "widget_spacing", "outer_margin", "section_edge_margin",
		"notch_enabled", "notch_width", "border_radius", "popover_offset",
		"outputs",
	})
	b.integer(tbl, "bar", "size", &bar.Size)
	b.integer(tbl, "bar", "widget_spacing", &bar.WidgetSpacing)
	b.integer(tbl, "bar", "outer_margin", &bar.OuterMargin)
	b.integer(tbl, "bar", "section_edge_margin", &bar.SectionEdgeMargin)
	b.boolean(tbl, "bar", "notch_enabled", &bar.NotchEnabled)
	b.integer(tbl, "bar", "notch_width", &bar.NotchWidth)
	b.integer(tbl, "bar", "border_radius", &bar.BorderRadius)
	b.integer(tbl, "bar", "popover_offset", &bar.PopoverOffset)
	b.stringList(tbl, "bar", "outputs", &bar.Outputs)
}

func (b *binder) bindWidgets(tbl map[string]interface{}, w *WidgetsConfig) {
	b.placements(tbl, "widgets", "left", &w.Left)
	b.placements(tbl, "widgets", "center", &w.Center)
	b.placements(tbl, "widgets", "right", &w.Right)
	b.integer(tbl, "widgets", "border_radius", &w.BorderRadius)

	// Every remaining key is a per-widget options table.
	w.WidgetConfigs = map[string]WidgetOptions{}
	for key, val := range tbl {
		switch key {
		case "left", "center", "right", "border_radius":
			continue
		}
		opts, ok := val.(map[string]interface{})
		if !ok {
			b.errf("widgets.%s: expected a table of widget options", key)
			continue
		}
		w.WidgetConfigs[key] = b.bindWidgetOptions(key, opts)
	}
}

func (b *binder) bindWidgetOptions(name string, tbl map[string]interface{}) WidgetOptions {
	opts := WidgetOptions{Options: map[string]interface{}{}}
	for key, val := range tbl {
		switch key {
		case "disabled":
			v, ok := val.(bool)
			if !ok {
				b.errf("widgets.%s.disabled: expected a boolean", name)
				continue
			}
			opts.Disabled = v
		case "color":
			v, ok := val.(string)
			if !ok {
				b.errf("widgets.%s.color: expected a string", name)
				continue
			}
			opts.Color = v
		default:
			opts.Options[key] = val
		}
	}
	return opts
}

func (b *binder) bindTheme(tbl map[string]interface{}, th *ThemeConfig) {
	b.checkKeys("theme", tbl, []string{
		"mode", "accent", "bar_background_color", "bar_opacity",
		"widget_background_color", "widget_opacity", "states", "typography",
	})
	b.str(tbl, "theme", "mode", &th.Mode)
	b.str(tbl, "theme", "accent", &th.Accent)
	b.str(tbl, "theme", "bar_background_color", &th.BarBackgroundColor)
	b.float(tbl, "theme", "bar_opacity", &th.BarOpacity)
	b.str(tbl, "theme", "widget_background_color", &th.WidgetBackgroundColor)
	b.float(tbl, "theme", "widget_opacity", &th.WidgetOpacity)

	if st := b.table(tbl, "states"); st != nil {
		b.checkKeys("theme.states", st, []string{"success", "warning", "urgent"})
		b.str(st, "theme.states", "success", &th.States.Success)
		b.str(st, "theme.states", "warning", &th.States.Warning)
		b.str(st, "theme.states", "urgent", &th.States.Urgent)
	}
	if ty := b.table(tbl, "typography"); ty != nil {
		b.checkKeys("theme.typography", ty, []string{"font_family"})
		b.str(ty, "theme.typography", "font_family", &th.Typography.FontFamily)
	}
}

// checkKeys rejects keys not present in known, suggesting the nearest
// known key when one is plausibly a typo. An empty section means the
// document root.
func (b *binder) checkKeys(section string, tbl map[string]interface{}, known []string) {
	var unknown []string
	for key := range tbl {
		found := false
		for _, k := range known {
			if key == k {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		path := key
		kind := "key"
		if section == "" {
			kind = "section"
		} else {
			path = section + "." + key
		}
		if near := nearestKey(key, known); near != "" {
			b.errf("%s: unknown %s (did you mean %q?)", path, kind, near)
		} else {
			b.errf("%s: unknown %s", path, kind)
		}
	}
}

func (b *binder) table(tbl map[string]interface{}, key string) map[string]interface{} {
	val, ok := tbl[key]
	if !ok {
		return nil
	}
	t, ok := val.(map[string]interface{})
	if !ok {
		b.errf("%s: expected a table", key)
		return nil
	}
	return t
}

func (b *binder) str(tbl map[string]interface{}, section, key string, dst *string) {
	val, ok := tbl[key]
	if !ok {
		return
	}
	s, ok := val.(string)
	if !ok {
		b.errf("%s.%s: expected a string", section, key)
		return
	}
	*dst = s
}

func (b *binder) boolean(tbl map[string]interface{}, section, key string, dst *bool) {
	val, ok := tbl[key]
	if !ok {
		return
	}
	v, ok := val.(bool)
	if !ok {
		b.errf("%s.%s: expected a boolean", section, key)
		return
	}
	*dst = v
}

func (b *binder) integer(tbl map[string]interface{}, section, key string, dst *int) {
	val, ok := tbl[key]
	if !ok {
		return
	}
	n, ok := val.(int64)
	if !ok {
		b.errf("%s.%s: expected an integer", section, key)
		return
	}
	if n < 0 {
		b.errf("%s.%s: must not be negative", section, key)
		return
	}
	*dst = int(n)
}

func (b *binder) float(tbl map[string]interface{}, section, key string, dst *float64) {
	val, ok := tbl[key]
	if !ok {
		return
	}
	switch v := val.(type) {
	case float64:
		*dst = v
	case int64:
		*dst = float64(v)
	default:
		b.errf("%s.%s: expected a number", section, key)
	}
}

func (b *binder) stringList(tbl map[string]interface{}, section, key string, dst *[]string) {
	val, ok := tbl[key]
	if !ok {
		return
	}
	arr, ok := val.([]interface{})
	if !ok {
		b.errf("%s.%s: expected an array of strings", section, key)
		return
	}
	out := make([]string, 0, len(arr))
	for i, el := range arr {
		s, ok := el.(string)
		if !ok {
			b.errf("%s.%s[%d]: expected a string", section, key, i)
			return
		}
		out = append(out, s)
	}
	*dst = out
}

// placements parses a widget section array. Each entry is either a
// widget name string or an inline table { group = ["a", "b"] }.
func (b *binder) placements(tbl map[string]interface{}, section, key string, dst *[]WidgetPlacement) {
	val, ok := tbl[key]
	if !ok {
		return
	}
	arr, ok := val.([]interface{})
	if !ok {
		b.errf("%s.%s: expected an array of widget names or groups", section, key)
		return
	}
	out := make([]WidgetPlacement, 0, len(arr))
	for i, el := range arr {
		switch v := el.(type) {
		case string:
			out = append(out, WidgetPlacement{Name: v})
		case map[string]interface{}:
			b.checkKeys(fmt.Sprintf("%s.%s[%d]", section, key, i), v, []string{"group"})
			names, ok := v["group"].([]interface{})
			if !ok {
				b.errf("%s.%s[%d].group: expected an array of widget names", section, key, i)
				continue
			}
			group := make([]string, 0, len(names))
			for _, n := range names {
				s, ok := n.(string)
				if !ok {
					b.errf("%s.%s[%d].group: expected an array of widget names", section, key, i)
					group = nil
					break
				}
				group = append(group, s)
			}
			if group != nil {
				out = append(out, WidgetPlacement{Group: group})
			}
		default:
			b.errf("%s.%s[%d]: expected a widget name or { group = [...] }", section, key, i)
		}
	}
	*dst = out
}
