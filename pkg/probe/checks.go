package probe

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Database checks that the database answers and the schema is in place.
func Database(db *sql.DB) Probe {
	return Probe{
		Name:     "Database",
		Critical: true,
		Check: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			var n int
			err := db.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('persistent_state','command_events')").Scan(&n)
			if err != nil {
				return fmt.Errorf("schema: %w", err)
			}
			if n != 2 {
				return fmt.Errorf("schema: %d of 2 tables present", n)
			}
			return nil
		},
	}
}

var linkAddressRe = regexp.MustCompile(`^(udp|udpin|udpout|udpbcast|tcp|tcpin|tcpout|serial)://.+$`)

// LinkAddress validates the vehicle link URL. For serial links the device
// node must exist.
func LinkAddress(provider, addr string) Probe {
	return Probe{
		Name:     "Link address",
		Critical: true,
		Check: func(ctx context.Context) error {
			if provider == "mock" {
				return nil
			}
			if !linkAddressRe.MatchString(addr) {
				return fmt.Errorf("unsupported link address %q", addr)
			}
			const serial = "serial://"
			if len(addr) > len(serial) && addr[:len(serial)] == serial {
				dev := addr[len(serial):]
				if i := lastColon(dev); i > 0 {
					dev = dev[:i]
				}
				if _, err := os.Stat(dev); err != nil {
					return fmt.Errorf("serial device: %w", err)
				}
			}
			return nil
		},
	}
}

// WritableDir checks that files can be created next to path.
func WritableDir(name, path string) Probe {
	return Probe{
		Name: name,
		Check: func(ctx context.Context) error {
			dir := filepath.Dir(path)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			f, err := os.CreateTemp(dir, ".probe-*")
			if err != nil {
				return err
			}
			tmp := f.Name()
			f.Close()
			return os.Remove(tmp)
		},
	}
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
		if s[i] == '/' {
			return -1
		}
	}
	return -1
}
