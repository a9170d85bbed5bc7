package api

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"groundlink/pkg/logging"
)

// key=value or key="value with spaces"
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// Attribute values longer than this are dropped from the one-line summary.
const maxLogValueLen = 20

// LogResponse is the body of GET /api/log.
type LogResponse struct {
	Level string `json:"level,omitempty"`
	Line  string `json:"line"`
}

// handleLatestLog returns the last captured INFO-or-above log line.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	level, line := formatLogLine(logging.GlobalLogCapture.LastLine())
	writeJSON(w, http.StatusOK, LogResponse{Level: level, Line: line})
}

// formatLogLine condenses a slog text line to "HH:MM:SS msg (k=v, ...)".
// Attributes are sorted and long values are dropped. Lines that do not parse
// are returned unchanged.
func formatLogLine(raw string) (level, line string) {
	matches := logRegex.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return "", raw
	}

	var msg, clock string
	var attrs []string

	for _, m := range matches {
		key, val := m[1], m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				clock = t.Format("15:04:05")
			}
		case "level":
			level = val
		case "msg":
			msg = val
		default:
			if len(val) <= maxLogValueLen {
				attrs = append(attrs, key+"="+val)
			}
		}
	}

	if msg == "" {
		return level, raw
	}

	sort.Strings(attrs)

	line = msg
	if clock != "" {
		line = clock + " " + msg
	}
	if len(attrs) > 0 {
		line = fmt.Sprintf("%s (%s)", line, strings.Join(attrs, ", "))
	}
	return level, line
}
