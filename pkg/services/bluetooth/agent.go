package bluetooth

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	agentPath  = dbus.ObjectPath("/org/vibepanel/bluetooth/agent")
	agentIface = "org.bluez.Agent1"

	agentCapability = "KeyboardDisplay"
)

var (
	errCanceled = dbus.NewError("org.bluez.Error.Canceled", nil)
	errTimedOut = dbus.NewError("org.bluez.Error.Rejected", []interface{}{"Pairing timed out"})
)

// authReply is the answer to a blocked agent method call.
type authReply struct {
	pin     string
	passkey uint32
	err     *dbus.Error
}

// agent is the org.bluez.Agent1 object. BlueZ calls into it during
// pairing; request methods block until the user responds, times out,
// or the pairing is canceled. All state lives in the service on the
// event loop; the agent only bridges.
type agent struct {
	svc *Service
}

func (a *agent) Release() *dbus.Error {
	a.svc.loop.Post(a.svc.clearAuth)
	return nil
}

func (a *agent) RequestPinCode(device dbus.ObjectPath) (string, *dbus.Error) {
	ch := make(chan authReply, 1)
	a.svc.loop.Post(func() {
		a.svc.beginAuth(AuthPinCode, device, "", ch)
	})
	reply := <-ch
	return reply.pin, reply.err
}

func (a *agent) DisplayPinCode(device dbus.ObjectPath, pincode string) *dbus.Error {
	a.svc.loop.Post(func() {
		a.svc.beginAuth(AuthDisplayPinCode, device, pincode, nil)
	})
	return nil
}

func (a *agent) RequestPasskey(device dbus.ObjectPath) (uint32, *dbus.Error) {
	ch := make(chan authReply, 1)
	a.svc.loop.Post(func() {
		a.svc.beginAuth(AuthPasskey, device, "", ch)
	})
	reply := <-ch
	return reply.passkey, reply.err
}

func (a *agent) DisplayPasskey(device dbus.ObjectPath, passkey uint32, entered uint16) *dbus.Error {
	a.svc.loop.Post(func() {
		a.svc.beginAuth(AuthDisplayPasskey, device, formatPasskey(passkey), nil)
	})
	return nil
}

func (a *agent) RequestConfirmation(device dbus.ObjectPath, passkey uint32) *dbus.Error {
	ch := make(chan authReply, 1)
	a.svc.loop.Post(func() {
		a.svc.beginAuth(AuthConfirmation, device, formatPasskey(passkey), ch)
	})
	reply := <-ch
	return reply.err
}

// AuthorizeService auto-accepts. The agent is not the default agent,
// so only pairings this process initiated ever reach it.
func (a *agent) AuthorizeService(device dbus.ObjectPath, uuid string) *dbus.Error {
	return nil
}

func (a *agent) Cancel() *dbus.Error {
	a.svc.loop.Post(func() {
		a.svc.cancelPending(errCanceled)
		a.svc.publishAuth()
	})
	return nil
}

// formatPasskey renders a numeric passkey the way remote devices show
// it, zero-padded to six digits.
func formatPasskey(passkey uint32) string {
	return fmt.Sprintf("%06d", passkey)
}

const agentIntrospection = `
<node>
	<interface name="org.bluez.Agent1">
		<method name="Release"/>
		<method name="RequestPinCode">
			<arg name="device" type="o" direction="in"/>
			<arg name="pincode" type="s" direction="out"/>
		</method>
		<method name="DisplayPinCode">
			<arg name="device" type="o" direction="in"/>
			<arg name="pincode" type="s" direction="in"/>
		</method>
		<method name="RequestPasskey">
			<arg name="device" type="o" direction="in"/>
			<arg name="passkey" type="u" direction="out"/>
		</method>
		<method name="DisplayPasskey">
			<arg name="device" type="o" direction="in"/>
			<arg name="passkey" type="u" direction="in"/>
			<arg name="entered" type="q" direction="in"/>
		</method>
		<method name="RequestConfirmation">
			<arg name="device" type="o" direction="in"/>
			<arg name="passkey" type="u" direction="in"/>
		</method>
		<method name="AuthorizeService">
			<arg name="device" type="o" direction="in"/>
			<arg name="uuid" type="s" direction="in"/>
		</method>
		<method name="Cancel"/>
	</interface>` + introspect.IntrospectDataString + `</node>`

// exportAgent publishes the agent object on the bus.
func exportAgent(conn *dbus.Conn, a *agent) error {
	if err := conn.Export(a, agentPath, agentIface); err != nil {
		return err
	}
	return conn.Export(introspect.Introspectable(agentIntrospection),
		agentPath, "org.freedesktop.DBus.Introspectable")
}
