package mavlink

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/bluenviron/gomavlib/v3"
)

const defaultBaud = 57600

// ParseAddress turns a connection URL into gomavlib endpoints.
//
//	udp://:14540, udpin://0.0.0.0:14540   listen for the vehicle
//	udpout://192.168.1.10:14550            send to the vehicle
//	udpbcast://192.168.1.255:14550         broadcast
//	tcp://host:5760, tcpout://host:5760    connect to a TCP server
//	tcpin://:5760                          accept a TCP client
//	serial:///dev/ttyACM0:57600            serial device, optional baud
func ParseAddress(addr string) ([]gomavlib.EndpointConf, error) {
	scheme, rest, ok := strings.Cut(addr, "://")
	if !ok || rest == "" {
		return nil, fmt.Errorf("invalid link address %q", addr)
	}

	switch scheme {
	case "udp", "udpin":
		hp, err := hostPort(rest, "0.0.0.0")
		if err != nil {
			return nil, err
		}
		return []gomavlib.EndpointConf{gomavlib.EndpointUDPServer{Address: hp}}, nil
	case "udpout":
		hp, err := hostPort(rest, "127.0.0.1")
		if err != nil {
			return nil, err
		}
		return []gomavlib.EndpointConf{gomavlib.EndpointUDPClient{Address: hp}}, nil
	case "udpbcast":
		hp, err := hostPort(rest, "255.255.255.255")
		if err != nil {
			return nil, err
		}
		return []gomavlib.EndpointConf{gomavlib.EndpointUDPBroadcast{BroadcastAddress: hp}}, nil
	case "tcp", "tcpout":
		hp, err := hostPort(rest, "127.0.0.1")
		if err != nil {
			return nil, err
		}
		return []gomavlib.EndpointConf{gomavlib.EndpointTCPClient{Address: hp}}, nil
	case "tcpin":
		hp, err := hostPort(rest, "0.0.0.0")
		if err != nil {
			return nil, err
		}
		return []gomavlib.EndpointConf{gomavlib.EndpointTCPServer{Address: hp}}, nil
	case "serial":
		device, baud, err := serialDevice(rest)
		if err != nil {
			return nil, err
		}
		return []gomavlib.EndpointConf{gomavlib.EndpointSerial{Device: device, Baud: baud}}, nil
	}
	return nil, fmt.Errorf("unsupported link scheme %q", scheme)
}

func hostPort(s, defaultHost string) (string, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return "", fmt.Errorf("invalid host:port %q: %w", s, err)
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return "", fmt.Errorf("invalid port %q", port)
	}
	if host == "" {
		host = defaultHost
	}
	return net.JoinHostPort(host, port), nil
}

func serialDevice(s string) (string, int, error) {
	device, baud := s, defaultBaud
	if i := strings.LastIndex(s, ":"); i > 0 {
		b, err := strconv.Atoi(s[i+1:])
		if err != nil || b <= 0 {
			return "", 0, fmt.Errorf("invalid baud rate in %q", s)
		}
		device, baud = s[:i], b
	}
	if !strings.HasPrefix(device, "/") && !strings.HasPrefix(strings.ToUpper(device), "COM") {
		return "", 0, fmt.Errorf("invalid serial device %q", device)
	}
	return device, baud, nil
}
