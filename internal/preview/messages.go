package preview

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Kind classifies a log record.
type Kind string

const (
	KindLog          Kind = "log"
	KindInfo         Kind = "info"
	KindWarn         Kind = "warn"
	KindError        Kind = "error"
	KindBuildError   Kind = "build-error"
	KindRuntimeError Kind = "runtime-error"
	KindHostError    Kind = "host-error"
)

// message is the envelope posted by the preview host.
type message struct {
	Type     string            `json:"type"`
	Method   string            `json:"method"`
	Data     []json.RawMessage `json:"data"`
	Message  *string           `json:"message"`
	Filename string            `json:"filename"`
	Lineno   int               `json:"lineno"`
}

var consoleKinds = map[string]Kind{
	"log":   KindLog,
	"info":  KindInfo,
	"warn":  KindWarn,
	"error": KindError,
}

// Demux decodes one host message into a record kind and text. Messages
// that do not match the protocol report false and must be dropped.
func Demux(raw []byte) (Kind, string, bool) {
	var m message
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", "", false
	}
	switch m.Type {
	case "console":
		kind, ok := consoleKinds[m.Method]
		if !ok {
			return "", "", false
		}
		return kind, consoleText(m.Data), true

	case "build-error", "runtime-error", "host-error":
		if m.Message == nil {
			return "", "", false
		}
		text := *m.Message
		if m.Filename != "" {
			text += " (" + m.Filename
			if m.Lineno > 0 {
				text += ":" + strconv.Itoa(m.Lineno)
			}
			text += ")"
		}
		return Kind(m.Type), text, true
	}
	return "", "", false
}

// consoleText joins console arguments the way a browser console prints
// them: strings verbatim, everything else as JSON.
func consoleText(args []json.RawMessage) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		raw := bytes.TrimSpace(a)
		var s string
		if len(raw) > 0 && raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
			parts = append(parts, s)
			continue
		}
		parts = append(parts, string(raw))
	}
	return strings.Join(parts, " ")
}
