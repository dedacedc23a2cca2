package gattbus

import (
	"github.com/godbus/dbus/v5"
)

const (
	agentObjectPath = dbus.ObjectPath("/org/r10bridge/agent")
	ifaceAgent1     = "org.bluez.Agent1"
	ifaceAgentMgr1  = "org.bluez.AgentManager1"
	agentPath       = "/org/bluez"
)

// pairingAgent implements the subset of org.bluez.Agent1 BlueZ calls during
// in-band pairing: it authorizes everything, since NoInputNoOutput capability
// means there is no human present to confirm a PIN or passkey.
type pairingAgent struct{}

func registerPairingAgent(conn *dbus.Conn) (*pairingAgent, error) {
	agent := &pairingAgent{}
	if err := conn.Export(agent, agentObjectPath, ifaceAgent1); err != nil {
		return nil, err
	}

	mgr := conn.Object(bluezBus, dbus.ObjectPath(agentPath))
	call := mgr.Call(ifaceAgentMgr1+".RegisterAgent", 0, agentObjectPath, "NoInputNoOutput")
	if call.Err != nil {
		conn.Export(nil, agentObjectPath, ifaceAgent1)
		return nil, call.Err
	}

	if call := mgr.Call(ifaceAgentMgr1+".RequestDefaultAgent", 0, agentObjectPath); call.Err != nil {
		return nil, call.Err
	}
	return agent, nil
}

func (a *pairingAgent) unregister(conn *dbus.Conn) {
	mgr := conn.Object(bluezBus, dbus.ObjectPath(agentPath))
	mgr.Call(ifaceAgentMgr1+".UnregisterAgent", 0, agentObjectPath)
	conn.Export(nil, agentObjectPath, ifaceAgent1)
}

// Release is called by BlueZ when the agent is unregistered.
func (a *pairingAgent) Release() *dbus.Error { return nil }

// RequestPinCode is never expected with NoInputNoOutput capability; BlueZ
// only calls this for capabilities that accept keyboard input.
func (a *pairingAgent) RequestPinCode(_ dbus.ObjectPath) (string, *dbus.Error) {
	return "", dbus.NewError("org.bluez.Error.Rejected", nil)
}

// DisplayPinCode is never expected with NoInputNoOutput capability.
func (a *pairingAgent) DisplayPinCode(_ dbus.ObjectPath, _ string) *dbus.Error {
	return nil
}

// RequestPasskey is never expected with NoInputNoOutput capability.
func (a *pairingAgent) RequestPasskey(_ dbus.ObjectPath) (uint32, *dbus.Error) {
	return 0, dbus.NewError("org.bluez.Error.Rejected", nil)
}

// DisplayPasskey is never expected with NoInputNoOutput capability.
func (a *pairingAgent) DisplayPasskey(_ dbus.ObjectPath, _ uint32, _ uint16) *dbus.Error {
	return nil
}

// RequestConfirmation auto-confirms: NoInputNoOutput has no human present to
// ask, and the R10's in-band pairing expects the host to accept silently.
func (a *pairingAgent) RequestConfirmation(_ dbus.ObjectPath, _ uint32) *dbus.Error {
	return nil
}

// RequestAuthorization auto-authorizes for the same reason.
func (a *pairingAgent) RequestAuthorization(_ dbus.ObjectPath) *dbus.Error {
	return nil
}

// AuthorizeService auto-authorizes any service access requested during
// pairing.
func (a *pairingAgent) AuthorizeService(_ dbus.ObjectPath, _ string) *dbus.Error {
	return nil
}

// Cancel is called by BlueZ when a pairing request is cancelled.
func (a *pairingAgent) Cancel() *dbus.Error { return nil }
