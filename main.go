// vibepanel is the service core of a Wayland status bar: configuration
// loading with hot reload, theme palette derivation, and the D-Bus and
// compositor services the bar widgets render from.
//
// Usage:
//
//	vibepanel [flags]
//
// Flags:
//
//	-config PATH            Explicit config file path
//	-check-config           Validate the config and exit
//	-print-default-config   Print the embedded default config and exit
//	-monitor                Launch the interactive service monitor TUI
//	-verbose                Enable debug logging
//	-version                Print version and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vibepanel/vibepanel/pkg/config"
	"github.com/vibepanel/vibepanel/pkg/eventloop"
	"github.com/vibepanel/vibepanel/pkg/services/battery"
	"github.com/vibepanel/vibepanel/pkg/services/bluetooth"
	"github.com/vibepanel/vibepanel/pkg/services/media"
	"github.com/vibepanel/vibepanel/pkg/services/network"
	"github.com/vibepanel/vibepanel/pkg/services/niri"
	"github.com/vibepanel/vibepanel/pkg/services/sysinfo"
	"github.com/vibepanel/vibepanel/pkg/services/vpn"
	"github.com/vibepanel/vibepanel/pkg/state"
	"github.com/vibepanel/vibepanel/pkg/theme"
	"github.com/vibepanel/vibepanel/pkg/tui"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Path to configuration file")
		checkConfig  = flag.Bool("check-config", false, "Validate the configuration and exit")
		printDefault = flag.Bool("print-default-config", false, "Print the embedded default configuration and exit")
		runMonitor   = flag.Bool("monitor", false, "Launch the interactive service monitor")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion  = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("vibepanel %s (%s)\n", version, commit)
		os.Exit(0)
	}

	if *printDefault {
		fmt.Print(config.DefaultConfigTOML)
		os.Exit(0)
	}

	result, err := config.FindAndLoad(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *checkConfig {
		os.Exit(runConfigCheck(result))
	}

	if err := result.Config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, cleanup := setupLogging(*verbose)
	defer cleanup()

	if result.UsedDefaults {
		logger.Info("no config file found, using embedded defaults",
			"searched", config.SearchPaths())
	} else {
		logger.Info("loaded config", "path", result.Source)
	}
	for _, w := range result.Config.Warnings() {
		logger.Warn("config warning", "detail", w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	if err := run(ctx, logger, result, *runMonitor); err != nil && err != context.Canceled {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// runConfigCheck validates the loaded config and prints a report.
func runConfigCheck(result *config.LoadResult) int {
	source := result.Source
	if result.UsedDefaults {
		source = "(embedded defaults)"
	}
	fmt.Printf("Config: %s\n", source)

	if err := result.Config.Validate(); err != nil {
		fmt.Printf("Invalid: %v\n", err)
		return 1
	}
	fmt.Println(result.Config.Summary())
	for _, w := range result.Config.Warnings() {
		fmt.Printf("Warning: %s\n", w)
	}
	fmt.Println("OK")
	return 0
}

// setupLogging builds the process logger writing to stderr and the log
// file under the state directory. The returned cleanup closes the file.
func setupLogging(verbose bool) (*slog.Logger, func()) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	cleanup := func() {}

	logPath := filepath.Join(filepath.Dir(state.DefaultPath()), "vibepanel.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err == nil {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
			w = io.MultiWriter(os.Stderr, f)
			cleanup = func() { f.Close() }
		}
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, cleanup
}

// run wires the event loop, services, and config watcher, then blocks
// until ctx is canceled.
func run(ctx context.Context, logger *slog.Logger, result *config.LoadResult, monitor bool) error {
	cfg := result.Config
	palette := theme.FromConfig(cfg)
	logger.Debug("palette derived", "dark", palette.IsDarkMode, "accent", palette.AccentPrimary)

	loop := eventloop.New(logger)
	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(ctx) }()

	networkSvc := network.New(logger, loop)
	vpnSvc := vpn.New(logger, loop, state.DefaultPath())
	bluetoothSvc := bluetooth.New(logger, loop)
	mediaSvc := media.New(logger, loop)
	batterySvc := battery.New(logger, loop)
	sysinfoSvc := sysinfo.New(logger, loop)
	niriBackend := niri.NewBackend(logger)

	var program *tea.Program
	if monitor {
		program = tea.NewProgram(tui.New(), tea.WithAltScreen())
	}

	loop.Post(func() {
		type service struct {
			name  string
			start func() error
		}
		for _, s := range []service{
			{"network", networkSvc.Start},
			{"vpn", vpnSvc.Start},
			{"bluetooth", bluetoothSvc.Start},
			{"media", mediaSvc.Start},
			{"battery", batterySvc.Start},
		} {
			if err := s.start(); err != nil {
				logger.Warn("service failed to start", "service", s.name, "error", err)
			}
		}
		if monitor {
			if err := sysinfoSvc.Start(); err != nil {
				logger.Warn("service failed to start", "service", "sysinfo", "error", err)
			}
		}

		if program != nil {
			networkSvc.OnChange(func(s network.Snapshot) { program.Send(tui.NetworkMsg{Snapshot: s}) })
			vpnSvc.OnChange(func(s vpn.Snapshot) { program.Send(tui.VPNMsg{Snapshot: s}) })
			bluetoothSvc.OnChange(func(s bluetooth.Snapshot) { program.Send(tui.BluetoothMsg{Snapshot: s}) })
			mediaSvc.OnChange(func(s media.Snapshot) { program.Send(tui.MediaMsg{Snapshot: s}) })
			batterySvc.OnChange(func(s battery.Snapshot) { program.Send(tui.BatteryMsg{Snapshot: s}) })
			sysinfoSvc.OnChange(func(s sysinfo.Snapshot) { program.Send(tui.SysinfoMsg{Snapshot: s}) })
		}
	})

	// Niri callbacks fire on the backend's stream goroutine; Send is
	// safe from any goroutine.
	onWorkspace := func(s niri.WorkspaceSnapshot) {
		if program != nil {
			program.Send(tui.WorkspaceMsg{Snapshot: s})
		}
	}
	onWindow := func(w niri.WindowInfo) {
		if program != nil {
			program.Send(tui.WindowMsg{Window: w})
		}
	}
	if err := niriBackend.Start(ctx, onWorkspace, onWindow); err != nil {
		logger.Warn("niri backend unavailable", "error", err)
	} else {
		defer niriBackend.Stop()
	}

	if !result.UsedDefaults {
		go watchConfig(ctx, logger, result.Source, cfg)
	}

	if program != nil {
		go func() {
			<-ctx.Done()
			program.Quit()
		}()
		_, err := program.Run()
		return err
	}

	return <-loopErr
}

// watchConfig reloads the config on file changes and logs what kind of
// change was detected. Theme changes recompute the palette; structural
// changes are surfaced so a supervising session can restart the bar.
func watchConfig(ctx context.Context, logger *slog.Logger, path string, current *config.Config) {
	watcher := config.NewWatcher(path, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("config watcher stopped", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-watcher.Events():
			if ev.Err != nil {
				logger.Warn("config reload failed, keeping previous config", "error", ev.Err)
				continue
			}
			if ev.StyleChanged {
				logger.Info("style.css changed, reapplying styles")
				continue
			}
			next := ev.Config
			switch {
			case config.StructureChanged(current, next):
				logger.Info("config structure changed, restart required")
			case config.ThemeChanged(current, next):
				logger.Info("theme changed, recomputing palette")
				theme.FromConfig(next)
			default:
				logger.Info("config reloaded")
			}
			current = next
		}
	}
}
