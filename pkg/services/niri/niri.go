package niri

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const (
	requestTimeout   = 2 * time.Second
	streamPollPeriod = 1 * time.Second

	reconnectInitial    = 1000 * time.Millisecond
	reconnectMax        = 30000 * time.Millisecond
	reconnectMultiplier = 1.5
)

// Backend maintains the workspace and window projection over Niri's IPC
// socket. Callbacks fire on the backend's stream goroutine; consumers
// marshal onto their own event loop.
type Backend struct {
	log        *slog.Logger
	socketPath string

	mu   sync.RWMutex
	proj *projection

	runMu   sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}

	onWorkspace WorkspaceCallback
	onWindow    WindowCallback
}

// NewBackend creates a backend. The socket path is resolved from
// $NIRI_SOCKET at Start.
func NewBackend(log *slog.Logger) *Backend {
	return &Backend{
		log:  log.With("service", "niri"),
		proj: newProjection(),
	}
}

// Start resolves the socket path, fetches initial state, and begins
// streaming events until ctx is canceled or Stop is called.
func (b *Backend) Start(ctx context.Context, onWorkspace WorkspaceCallback, onWindow WindowCallback) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.cancel != nil {
		return errors.New("niri backend already running")
	}

	path := os.Getenv("NIRI_SOCKET")
	if path == "" {
		return errors.New("NIRI_SOCKET not set")
	}
	b.socketPath = path
	b.onWorkspace = onWorkspace
	b.onWindow = onWindow

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.stopped = make(chan struct{})

	go func() {
		defer close(b.stopped)
		b.eventLoop(ctx)
	}()

	b.log.Debug("backend started", "socket", path)
	return nil
}

// Stop terminates the event stream and waits for the goroutine to exit.
func (b *Backend) Stop() {
	b.runMu.Lock()
	cancel, stopped := b.cancel, b.stopped
	b.cancel = nil
	b.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-stopped
	b.log.Debug("backend stopped")
}

// ListWorkspaces returns known workspace metadata sorted by output then
// index. Before the first snapshot arrives it returns placeholder
// workspaces 1 through 10.
func (b *Backend) ListWorkspaces() []WorkspaceMeta {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.proj.workspaces) == 0 {
		metas := make([]WorkspaceMeta, 0, 10)
		for i := int32(1); i <= 10; i++ {
			metas = append(metas, WorkspaceMeta{ID: i, Name: itoa(i)})
		}
		return metas
	}
	return append([]WorkspaceMeta(nil), b.proj.workspaces...)
}

// Snapshot returns a copy of the current workspace state.
func (b *Backend) Snapshot() WorkspaceSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.proj.snapshot.Clone()
}

// FocusedWindow returns the globally focused window, if any.
func (b *Backend) FocusedWindow() (WindowInfo, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.proj.focused == nil {
		return WindowInfo{}, false
	}
	return *b.proj.focused, true
}

// SwitchWorkspace asks the compositor to focus the workspace with the
// given per-output index. Errors are logged, not returned; mutations are
// fire-and-forget and the resulting state arrives via the event stream.
func (b *Backend) SwitchWorkspace(idx int32) {
	if _, err := b.sendRequest(newFocusWorkspaceAction(idx)); err != nil {
		b.log.Error("focus workspace failed", "workspace", idx, "error", err)
	}
}

// QuitCompositor asks Niri to exit without a confirmation prompt.
func (b *Backend) QuitCompositor() {
	b.log.Debug("sending quit request")
	if _, err := b.sendRequest(newQuitAction()); err != nil {
		b.log.Error("quit request failed", "error", err)
	}
}

// sendRequest performs a one-shot request on a fresh connection.
func (b *Backend) sendRequest(req any) (*wireReply, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	conn, err := net.DialTimeout("unix", b.socketPath, requestTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(requestTimeout))

	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		_ = uc.CloseWrite()
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, fmt.Errorf("read reply: %w", err)
	}

	var reply wireReply
	if err := json.Unmarshal(line, &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if reply.Err != nil {
		return nil, fmt.Errorf("niri error: %s", reply.Err)
	}
	return &reply, nil
}

// fetchInitialState primes the projection with full workspace and window
// lists before the event stream starts.
func (b *Backend) fetchInitialState() {
	if reply, err := b.sendRequest("Workspaces"); err != nil {
		b.log.Warn("initial workspace fetch failed", "error", err)
	} else if reply.Ok != nil {
		var ok wireOkPayload
		if err := json.Unmarshal(reply.Ok, &ok); err == nil && ok.Workspaces != nil {
			b.mu.Lock()
			b.proj.processWorkspaces(ok.Workspaces)
			b.mu.Unlock()
		}
	}

	if reply, err := b.sendRequest("Windows"); err != nil {
		b.log.Warn("initial window fetch failed", "error", err)
	} else if reply.Ok != nil {
		var ok wireOkPayload
		if err := json.Unmarshal(reply.Ok, &ok); err == nil && ok.Windows != nil {
			b.mu.Lock()
			b.proj.processWindows(ok.Windows)
			b.mu.Unlock()
		}
	}

	b.log.Debug("fetched initial state")
}

func (b *Backend) notify(wsChanged, winChanged bool) {
	if wsChanged && b.onWorkspace != nil {
		b.onWorkspace(b.Snapshot())
	}
	if winChanged && b.onWindow != nil {
		b.mu.RLock()
		infos := make([]WindowInfo, 0, len(b.proj.perOutputWindow))
		for _, info := range b.proj.perOutputWindow {
			infos = append(infos, info)
		}
		b.mu.RUnlock()
		for _, info := range infos {
			b.onWindow(info)
		}
	}
}

// eventLoop streams events, reconnecting with exponential backoff when the
// compositor goes away. Backoff resets on a successful connection.
func (b *Backend) eventLoop(ctx context.Context) {
	b.fetchInitialState()
	b.notify(true, true)

	backoff := reconnectInitial

	for ctx.Err() == nil {
		conn, err := net.DialTimeout("unix", b.socketPath, requestTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.log.Warn("connect failed, retrying", "error", err, "backoff", backoff)
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = reconnectInitial

		if _, err := conn.Write([]byte("\"EventStream\"\n")); err != nil {
			conn.Close()
			if ctx.Err() != nil {
				return
			}
			b.log.Warn("event stream request failed, retrying", "error", err, "backoff", backoff)
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		b.readStream(ctx, conn)
		conn.Close()
	}
}

// readStream consumes newline-delimited events until the connection drops
// or ctx is canceled. Read deadlines keep shutdown responsive.
func (b *Backend) readStream(ctx context.Context, conn net.Conn) {
	reader := bufio.NewReader(conn)
	for ctx.Err() == nil {
		_ = conn.SetReadDeadline(time.Now().Add(streamPollPeriod))
		line, err := reader.ReadBytes('\n')
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() && len(line) == 0 {
				continue
			}
			if ctx.Err() == nil {
				b.log.Error("stream read failed", "error", err)
			}
			return
		}

		var ev wireEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			b.log.Debug("skipping undecodable event", "error", err)
			continue
		}
		// Skip the {"Ok":"Handled"} acknowledgement of the stream request.
		var handled string
		if ev.Ok != nil && json.Unmarshal(ev.Ok, &handled) == nil && handled == "Handled" {
			continue
		}

		b.mu.Lock()
		wsChanged, winChanged := b.proj.handleEvent(&ev)
		b.mu.Unlock()
		b.notify(wsChanged, winChanged)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * reconnectMultiplier)
	if next > reconnectMax {
		next = reconnectMax
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
