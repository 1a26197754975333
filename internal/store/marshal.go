package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/condense/internal/ir"
)

// marshalPayload converts an event to its stored JSON form.
// Action arguments are canonicalized so identical calls store identical
// bytes. HTML escaping is disabled so payload text matches canonical JSON.
func marshalPayload(e ir.Event) (string, error) {
	w := ir.ToWire(e)
	if len(w.Arguments) > 0 {
		canonical, err := ir.CanonicalJSON(w.Arguments)
		if err != nil {
			return "", fmt.Errorf("marshal payload %s: arguments: %w", w.ID, err)
		}
		w.Arguments = canonical
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return "", fmt.Errorf("marshal payload %s: %w", w.ID, err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalWire parses a stored payload.
func unmarshalWire(data string) (ir.WireEvent, error) {
	var w ir.WireEvent
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return ir.WireEvent{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	return w, nil
}
