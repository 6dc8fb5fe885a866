package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Camera represents one camera record from the provider inventory.
// Only the fields reconciliation reads are typed; descriptive attributes are
// kept as raw JSON so an unexpected type never fails the whole page.
type Camera struct {
	Number           string          `json:"number"`
	Title            string          `json:"title"`
	Server           CameraServer    `json:"server"`
	TokenL           string          `json:"token_l"`
	Address          json.RawMessage `json:"address,omitempty"`
	Timezone         json.RawMessage `json:"timezone,omitempty"`
	IsPublic         json.RawMessage `json:"is_public,omitempty"`
	InactivityPeriod json.RawMessage `json:"inactivity_period,omitempty"`
	Tariff           json.RawMessage `json:"tariff,omitempty"`
	TokenR           json.RawMessage `json:"token_r,omitempty"`
	Permission       json.RawMessage `json:"permission,omitempty"`
	IsFav            json.RawMessage `json:"is_fav,omitempty"`
	Longitude        json.RawMessage `json:"longitude,omitempty"`
	Latitude         json.RawMessage `json:"latitude,omitempty"`
}

// CameraServer is the stream host serving a camera
type CameraServer struct {
	Domain string `json:"domain"`
}

// CameraFields lists the camera attributes requested from the provider
var CameraFields = []string{
	"number",
	"address",
	"title",
	"timezone",
	"is_public",
	"inactivity_period",
	"server",
	"tariff",
	"token_l",
	"token_r",
	"permission",
	"is_fav",
	"longitude",
	"latitude",
}

// UnmarshalJSON accepts the camera number either as a JSON string or as a JSON number.
func (c *Camera) UnmarshalJSON(data []byte) error {
	type plain Camera
	aux := struct {
		*plain
		Number json.RawMessage `json:"number"`
		Title  json.RawMessage `json:"title"`
	}{plain: (*plain)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	number, err := decodeIdentifier(aux.Number)
	if err != nil {
		return fmt.Errorf("camera number: %w", err)
	}
	c.Number = number
	c.Title = decodeText(aux.Title)
	return nil
}

// Validate checks the fields reconciliation depends on
func (c Camera) Validate() error {
	var missing []string
	if c.Number == "" {
		missing = append(missing, "number")
	}
	if c.Server.Domain == "" {
		missing = append(missing, "server.domain")
	}
	if c.TokenL == "" {
		missing = append(missing, "token_l")
	}
	if len(missing) > 0 {
		return fmt.Errorf("camera %q missing required fields: %s", c.Number, strings.Join(missing, ", "))
	}
	return nil
}

func decodeIdentifier(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", errors.New("expected string or number")
	}
	return n.String(), nil
}

// decodeText reads a display string; non-string values are kept as their JSON text
func decodeText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}
