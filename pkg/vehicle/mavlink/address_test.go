package mavlink

import (
	"testing"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		addr string
		want gomavlib.EndpointConf
	}{
		{"udp://:14540", gomavlib.EndpointUDPServer{Address: "0.0.0.0:14540"}},
		{"udpin://127.0.0.1:14550", gomavlib.EndpointUDPServer{Address: "127.0.0.1:14550"}},
		{"udpout://192.168.1.10:14550", gomavlib.EndpointUDPClient{Address: "192.168.1.10:14550"}},
		{"udpbcast://192.168.1.255:14550", gomavlib.EndpointUDPBroadcast{BroadcastAddress: "192.168.1.255:14550"}},
		{"tcp://localhost:5760", gomavlib.EndpointTCPClient{Address: "localhost:5760"}},
		{"tcpout://10.0.0.2:5760", gomavlib.EndpointTCPClient{Address: "10.0.0.2:5760"}},
		{"tcpin://:5760", gomavlib.EndpointTCPServer{Address: "0.0.0.0:5760"}},
		{"serial:///dev/ttyACM0", gomavlib.EndpointSerial{Device: "/dev/ttyACM0", Baud: 57600}},
		{"serial:///dev/ttyUSB0:921600", gomavlib.EndpointSerial{Device: "/dev/ttyUSB0", Baud: 921600}},
		{"serial://COM3:115200", gomavlib.EndpointSerial{Device: "COM3", Baud: 115200}},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			got, err := ParseAddress(tt.addr)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestParseAddress_Invalid(t *testing.T) {
	for _, addr := range []string{
		"",
		"14540",
		"udp://",
		"udp://localhost",
		"udp://:99999",
		"http://example.com:80",
		"serial://ttyACM0",
		"serial:///dev/ttyACM0:fast",
	} {
		t.Run(addr, func(t *testing.T) {
			_, err := ParseAddress(addr)
			assert.Error(t, err)
		})
	}
}
