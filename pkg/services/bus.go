package services

import (
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/vibepanel/vibepanel/pkg/eventloop"
)

var (
	systemOnce sync.Once
	systemConn *dbus.Conn
	systemErr  error

	sessionOnce sync.Once
	sessionConn *dbus.Conn
	sessionErr  error
)

// SystemBus returns the process-wide shared system bus connection.
func SystemBus() (*dbus.Conn, error) {
	systemOnce.Do(func() {
		systemConn, systemErr = dbus.SystemBus()
	})
	return systemConn, systemErr
}

// SessionBus returns the process-wide shared session bus connection.
func SessionBus() (*dbus.Conn, error) {
	sessionOnce.Do(func() {
		sessionConn, sessionErr = dbus.SessionBus()
	})
	return sessionConn, sessionErr
}

// Subscription routes matching bus signals onto the event loop. The
// handler runs on the loop goroutine and must filter on signal name
// and path itself, since godbus fans every subscribed signal out to
// every channel.
type Subscription struct {
	conn    *dbus.Conn
	ch      chan *dbus.Signal
	options []dbus.MatchOption
	done    chan struct{}
	once    sync.Once
}

// Subscribe adds a bus match and dispatches matching signals to
// handler on the event loop until Close is called.
func Subscribe(conn *dbus.Conn, loop *eventloop.Loop, handler func(*dbus.Signal), options ...dbus.MatchOption) (*Subscription, error) {
	if err := conn.AddMatchSignal(options...); err != nil {
		return nil, err
	}

	s := &Subscription{
		conn:    conn,
		ch:      make(chan *dbus.Signal, 32),
		options: options,
		done:    make(chan struct{}),
	}
	conn.Signal(s.ch)

	go func() {
		for {
			select {
			case <-s.done:
				return
			case sig, ok := <-s.ch:
				if !ok {
					return
				}
				loop.Post(func() { handler(sig) })
			}
		}
	}()

	return s, nil
}

// Close removes the match and stops dispatching. Idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.RemoveSignal(s.ch)
		// Best effort: the bus may already be gone.
		_ = s.conn.RemoveMatchSignal(s.options...)
	})
}

// nameOwnerChanged is the bus signal for service appearance and
// disappearance.
const nameOwnerChanged = "org.freedesktop.DBus.NameOwnerChanged"

// WatchNameOwner invokes onChange on the event loop with the new
// owner (empty when the name vanished) whenever ownership of name
// changes on conn.
func WatchNameOwner(conn *dbus.Conn, loop *eventloop.Loop, name string, onChange func(owner string)) (*Subscription, error) {
	return Subscribe(conn, loop, func(sig *dbus.Signal) {
		if sig.Name != nameOwnerChanged || len(sig.Body) < 3 {
			return
		}
		changed, ok := sig.Body[0].(string)
		if !ok || changed != name {
			return
		}
		newOwner, _ := sig.Body[2].(string)
		onChange(newOwner)
	},
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, name),
	)
}

// NameHasOwner reports whether a bus name currently has an owner.
func NameHasOwner(conn *dbus.Conn, name string) bool {
	var has bool
	err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, name).Store(&has)
	return err == nil && has
}
