package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Monitor is a monitor record of the CCTV platform.
//
// Only the camera-derived fields are typed. Every other attribute of the
// platform record is kept verbatim so an update sends back exactly what was read.
type Monitor struct {
	MID     string
	Name    string
	Host    string
	Path    string
	Details MonitorDetails

	extra map[string]json.RawMessage
}

// MonitorDetails is the nested details blob of a monitor.
// The platform ships it as a JSON string holding a JSON object; a plain object is
// accepted too and the original form is kept on encode.
type MonitorDetails struct {
	AutoHost string

	extra    map[string]json.RawMessage
	asObject bool
}

var monitorKeys = []string{"mid", "name", "host", "path", "details"}

// UnmarshalJSON decodes a monitor, keeping unknown attributes
func (m *Monitor) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("monitor must be a JSON object")
	}

	var decoded Monitor
	targets := map[string]*string{
		"mid":  &decoded.MID,
		"name": &decoded.Name,
		"host": &decoded.Host,
		"path": &decoded.Path,
	}
	for key, target := range targets {
		value, err := decodeOptionalString(fields[key])
		if err != nil {
			return fmt.Errorf("monitor %s: %w", key, err)
		}
		*target = value
	}

	details, err := decodeDetails(fields["details"])
	if err != nil {
		return fmt.Errorf("monitor details: %w", err)
	}
	decoded.Details = details

	for _, key := range monitorKeys {
		delete(fields, key)
	}
	decoded.extra = fields

	*m = decoded
	return nil
}

// MarshalJSON encodes the monitor with sorted keys and without HTML escaping,
// so equal monitors always produce equal bytes.
func (m Monitor) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(m.extra)+len(monitorKeys))
	for key, value := range m.extra {
		fields[key] = value
	}

	for key, value := range map[string]string{
		"mid":  m.MID,
		"name": m.Name,
		"host": m.Host,
		"path": m.Path,
	} {
		encoded, err := marshalNoEscape(value)
		if err != nil {
			return nil, err
		}
		fields[key] = encoded
	}

	details, err := m.Details.encode()
	if err != nil {
		return nil, fmt.Errorf("monitor details: %w", err)
	}
	fields["details"] = details

	return marshalNoEscape(fields)
}

// Validate checks the fields reconciliation depends on
func (m Monitor) Validate() error {
	if m.MID == "" {
		return errors.New("monitor missing required field: mid")
	}
	return nil
}

// Clone returns a deep copy. The template is cloned before every create.
func (m Monitor) Clone() Monitor {
	clone := m
	clone.extra = cloneFields(m.extra)
	clone.Details.extra = cloneFields(m.Details.extra)
	return clone
}

// Field returns an untyped attribute of the monitor as raw JSON
func (m Monitor) Field(key string) (json.RawMessage, bool) {
	value, ok := m.extra[key]
	return value, ok
}

// Equal reports whether two monitors encode to the same bytes
func (m Monitor) Equal(other Monitor) bool {
	a, errA := m.MarshalJSON()
	b, errB := other.MarshalJSON()
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Field returns an attribute of the details blob as raw JSON
func (d MonitorDetails) Field(key string) (json.RawMessage, bool) {
	value, ok := d.extra[key]
	return value, ok
}

func (d MonitorDetails) encode() (json.RawMessage, error) {
	fields := make(map[string]json.RawMessage, len(d.extra)+1)
	for key, value := range d.extra {
		fields[key] = value
	}

	autoHost, err := marshalNoEscape(d.AutoHost)
	if err != nil {
		return nil, err
	}
	fields["auto_host"] = autoHost

	object, err := marshalNoEscape(fields)
	if err != nil {
		return nil, err
	}
	if d.asObject {
		return object, nil
	}
	return marshalNoEscape(string(object))
}

func decodeDetails(raw json.RawMessage) (MonitorDetails, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return MonitorDetails{}, nil
	}

	details := MonitorDetails{asObject: trimmed[0] != '"'}
	body := trimmed
	if !details.asObject {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return MonitorDetails{}, err
		}
		if strings.TrimSpace(s) == "" {
			return details, nil
		}
		body = []byte(s)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return MonitorDetails{}, fmt.Errorf("expected a JSON object: %w", err)
	}

	autoHost, err := decodeOptionalString(fields["auto_host"])
	if err != nil {
		return MonitorDetails{}, fmt.Errorf("auto_host: %w", err)
	}
	delete(fields, "auto_host")

	details.AutoHost = autoHost
	details.extra = fields
	return details, nil
}

func decodeOptionalString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}

func marshalNoEscape(v interface{}) (json.RawMessage, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func cloneFields(fields map[string]json.RawMessage) map[string]json.RawMessage {
	if fields == nil {
		return nil
	}
	clone := make(map[string]json.RawMessage, len(fields))
	for key, value := range fields {
		clone[key] = append(json.RawMessage(nil), value...)
	}
	return clone
}
