package config

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// parseInlineArg splits an inline argument off a widget name.
//
// Supports syntax like "spacer:50" where the part after the colon is
// the inline arg. Empty args ("spacer:") are treated as absent.
func parseInlineArg(name string) (base string, arg string) {
	if pos := strings.IndexByte(name, ':'); pos >= 0 {
		return name[:pos], name[pos+1:]
	}
	return name, ""
}

// IsDisabled reports whether a widget is disabled via its
// [widgets.<name>] config.
func (w *WidgetsConfig) IsDisabled(name string) bool {
	opts, ok := w.WidgetConfigs[name]
	return ok && opts.Disabled
}

// GetOptions returns the widget options for a name, or nil if no
// [widgets.<name>] section exists.
func (w *WidgetsConfig) GetOptions(name string) *WidgetOptions {
	if opts, ok := w.WidgetConfigs[name]; ok {
		return &opts
	}
	return nil
}

// resolveWidget resolves a single widget name to a WidgetEntry,
// applying options from config. Returns nil if the widget is disabled.
//
// The spacer inline width ("spacer:50") is intentionally special-cased:
// the parsed value is injected into the entry as options["width"].
func (w *WidgetsConfig) resolveWidget(name string) *WidgetEntry {
	base, arg := parseInlineArg(name)

	if w.IsDisabled(base) {
		return nil
	}

	entry := &WidgetEntry{Name: base, Options: map[string]interface{}{}}
	if opts := w.GetOptions(base); opts != nil {
		if opts.Color != "" && !isValidHexColor(opts.Color) {
			slog.Warn("invalid widget color, expected hex like '#ff0000' or '#f00'",
				"widget", base, "color", opts.Color)
		}
		entry.Color = opts.Color
		for k, v := range opts.Options {
			entry.Options[k] = v
		}
	}

	if arg != "" {
		if base == "spacer" {
			width, err := strconv.ParseInt(arg, 10, 64)
			if err == nil && width > 0 {
				entry.Options["width"] = width
			} else {
				slog.Warn("invalid spacer width, expected a positive integer", "arg", arg)
			}
		} else {
			slog.Warn("ignoring inline argument for widget", "widget", base, "arg", arg)
		}
	}

	return entry
}

// ResolvePlacement resolves a placement, applying options and
// filtering disabled widgets. Returns nil if every widget in the
// placement is disabled.
func (w *WidgetsConfig) ResolvePlacement(p *WidgetPlacement) *WidgetOrGroup {
	if !p.IsGroup() {
		if entry := w.resolveWidget(p.Name); entry != nil {
			return &WidgetOrGroup{Single: entry}
		}
		return nil
	}

	var resolved []WidgetEntry
	for _, name := range p.Group {
		if entry := w.resolveWidget(name); entry != nil {
			resolved = append(resolved, *entry)
		}
	}
	if len(resolved) == 0 {
		return nil
	}
	return &WidgetOrGroup{Group: resolved}
}

// ResolveSection resolves all placements in a section.
func (w *WidgetsConfig) ResolveSection(placements []WidgetPlacement) []WidgetOrGroup {
	var out []WidgetOrGroup
	for i := range placements {
		if r := w.ResolvePlacement(&placements[i]); r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// ResolvedLeft returns the resolved widgets for the left section.
func (w *WidgetsConfig) ResolvedLeft() []WidgetOrGroup { return w.ResolveSection(w.Left) }

// ResolvedCenter returns the resolved widgets for the center section.
func (w *WidgetsConfig) ResolvedCenter() []WidgetOrGroup { return w.ResolveSection(w.Center) }

// ResolvedRight returns the resolved widgets for the right section.
func (w *WidgetsConfig) ResolvedRight() []WidgetOrGroup { return w.ResolveSection(w.Right) }

// isFlexibleSpacer reports whether a widget name is a spacer that will
// expand to fill available space. Spacers with a fixed width, via
// inline arg or a width option, are not flexible. Disabled spacers are
// never flexible.
func (w *WidgetsConfig) isFlexibleSpacer(name string) bool {
	base, arg := parseInlineArg(name)

	if base != "spacer" || w.IsDisabled(base) {
		return false
	}
	if arg != "" {
		return false
	}
	if opts := w.GetOptions(base); opts != nil {
		if _, ok := opts.Options["width"]; ok {
			return false
		}
	}
	return true
}

// SectionHasExpander reports whether a section contains any widget
// that expands to fill available space.
func (w *WidgetsConfig) SectionHasExpander(section []WidgetPlacement) bool {
	for _, placement := range section {
		for _, name := range placement.WidgetNames() {
			if w.isFlexibleSpacer(name) {
				return true
			}
		}
	}
	return false
}

// LeftHasExpander reports whether the left section has an expander.
func (w *WidgetsConfig) LeftHasExpander() bool { return w.SectionHasExpander(w.Left) }

// RightHasExpander reports whether the right section has an expander.
func (w *WidgetsConfig) RightHasExpander() bool { return w.SectionHasExpander(w.Right) }

// AllReferencedWidgets returns every widget name appearing in any
// placement array.
func (w *WidgetsConfig) AllReferencedWidgets() map[string]bool {
	names := map[string]bool{}
	for _, section := range [][]WidgetPlacement{w.Left, w.Center, w.Right} {
		for _, placement := range section {
			for _, name := range placement.WidgetNames() {
				names[name] = true
			}
		}
	}
	return names
}

// UnreferencedConfigs returns widget config names that appear in no
// placement array (potential typos), sorted for stable output.
func (w *WidgetsConfig) UnreferencedConfigs() []string {
	referenced := w.AllReferencedWidgets()
	var out []string
	for name := range w.WidgetConfigs {
		base, _ := parseInlineArg(name)
		if !referenced[name] && !referencedBase(referenced, base) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// referencedBase reports whether any referenced name resolves to base
// after stripping inline args.
func referencedBase(referenced map[string]bool, base string) bool {
	for name := range referenced {
		b, _ := parseInlineArg(name)
		if b == base {
			return true
		}
	}
	return false
}
