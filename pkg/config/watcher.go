package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fileChangeDebounce coalesces editor write bursts into one reload.
const fileChangeDebounce = 300 * time.Millisecond

// WatchEvent is delivered on the watcher channel after a config file
// change settles.
type WatchEvent struct {
	// Config is the freshly loaded configuration. Nil when the
	// reload failed, in which case Err is set and the previous
	// configuration stays in effect.
	Config *Config

	// Err describes a failed reload.
	Err error

	// StyleChanged is true when the style.css sibling changed
	// instead of the config file itself.
	StyleChanged bool
}

// Watcher watches a config file and its style.css sibling for changes
// and reloads after a short debounce.
type Watcher struct {
	path   string
	style  string
	log    *slog.Logger
	events chan WatchEvent
}

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(path string, log *slog.Logger) *Watcher {
	return &Watcher{
		path:   path,
		style:  filepath.Join(filepath.Dir(path), "style.css"),
		log:    log,
		events: make(chan WatchEvent, 4),
	}
}

// Events returns the channel on which reload results are delivered.
func (w *Watcher) Events() <-chan WatchEvent {
	return w.events
}

// Run watches until ctx is canceled. The parent directory is watched
// rather than the file so that editors that replace the file (write
// to temp, rename over) don't break the watch.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return err
	}
	w.log.Debug("watching config directory", "dir", dir)

	var (
		timer        *time.Timer
		timerC       <-chan time.Time
		pendingStyle bool
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			isConfig := samePath(ev.Name, w.path)
			isStyle := samePath(ev.Name, w.style)
			if !isConfig && !isStyle {
				continue
			}
			if isStyle {
				pendingStyle = true
			}
			if timer == nil {
				timer = time.NewTimer(fileChangeDebounce)
			} else {
				timer.Reset(fileChangeDebounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if pendingStyle {
				pendingStyle = false
				w.emit(ctx, WatchEvent{StyleChanged: true})
			}
			w.reload(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := Load(w.path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		w.log.Error("config reload failed, keeping previous config", "error", err)
		w.emit(ctx, WatchEvent{Err: err})
		return
	}
	w.log.Info("config reloaded", "path", w.path)
	w.emit(ctx, WatchEvent{Config: cfg})
}

func (w *Watcher) emit(ctx context.Context, ev WatchEvent) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}

// samePath compares two paths after symlink resolution, falling back
// to a lexical comparison when resolution fails.
func samePath(a, b string) bool {
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	if errA == nil && errB == nil {
		return ra == rb
	}
	ca, _ := filepath.Abs(a)
	cb, _ := filepath.Abs(b)
	return ca == cb
}

// ThemeChanged reports whether a reload changed anything that requires
// regenerating the theme palette.
func ThemeChanged(old, next *Config) bool {
	return old.Theme.Mode != next.Theme.Mode ||
		old.Theme.Accent != next.Theme.Accent ||
		old.Theme.BarBackgroundColor != next.Theme.BarBackgroundColor ||
		old.Theme.BarOpacity != next.Theme.BarOpacity ||
		old.Theme.WidgetBackgroundColor != next.Theme.WidgetBackgroundColor ||
		old.Theme.WidgetOpacity != next.Theme.WidgetOpacity ||
		old.Theme.States != next.Theme.States ||
		old.Theme.Typography.FontFamily != next.Theme.Typography.FontFamily ||
		old.Bar.BorderRadius != next.Bar.BorderRadius ||
		old.Widgets.BorderRadius != next.Widgets.BorderRadius ||
		old.Bar.Size != next.Bar.Size ||
		old.Advanced.PangoFontRendering != next.Advanced.PangoFontRendering
}

// StructureChanged reports whether a reload changed the bar layout in
// a way that requires rebuilding the bar windows.
func StructureChanged(old, next *Config) bool {
	return old.Bar.Size != next.Bar.Size ||
		old.Bar.OuterMargin != next.Bar.OuterMargin ||
		old.Bar.WidgetSpacing != next.Bar.WidgetSpacing ||
		old.Bar.SectionEdgeMargin != next.Bar.SectionEdgeMargin ||
		old.Bar.NotchEnabled != next.Bar.NotchEnabled ||
		old.Bar.NotchWidth != next.Bar.NotchWidth ||
		old.Workspace.Backend != next.Workspace.Backend ||
		!reflect.DeepEqual(old.Bar.Outputs, next.Bar.Outputs) ||
		!reflect.DeepEqual(old.Widgets.Left, next.Widgets.Left) ||
		!reflect.DeepEqual(old.Widgets.Center, next.Widgets.Center) ||
		!reflect.DeepEqual(old.Widgets.Right, next.Widgets.Right) ||
		!reflect.DeepEqual(old.Widgets.WidgetConfigs, next.Widgets.WidgetConfigs)
}
