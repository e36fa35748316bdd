package master

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hiveworks/fleetd/pkg/types"
)

func TestRegisterHeartbeatBuildsFleetView(t *testing.T) {
	m := New()

	view := m.RegisterHeartbeat("h1:9000")
	assert.Equal(t, types.FleetView{
		Addrs: []types.Address{"h1:9000"},
		IPs:   []types.IP{"h1"},
	}, view)

	view = m.RegisterHeartbeat("h2:9000")
	assert.Len(t, view.Addrs, 2)
	assert.Len(t, view.IPs, 2)
	assert.Equal(t, types.IP("h2"), view.IPs[1])
}

func TestRegisterHeartbeatIsIdempotentForRepeatedAddr(t *testing.T) {
	m := New()
	m.RegisterHeartbeat("h1:9000")
	view := m.RegisterHeartbeat("h1:9000")
	assert.Len(t, view.Addrs, 1)
}

func TestIPFromAddr(t *testing.T) {
	assert.Equal(t, types.IP("10.0.0.1"), ipFromAddr("10.0.0.1:9000"))
	assert.Equal(t, types.IP("bare-host"), ipFromAddr("bare-host"))
}
