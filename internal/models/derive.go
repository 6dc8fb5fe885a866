package models

import (
	"strings"
	"unicode"
)

const (
	monitorIDPrefix = "monitor"
	streamSuffix    = "/tracks-v1a1/mono.m3u8?token="
)

// MonitorID maps a camera number to the platform monitor id
func MonitorID(number string) string {
	return monitorIDPrefix + number
}

// StreamPath builds the HLS path of a camera stream
func StreamPath(number, token string) string {
	return "/" + number + streamSuffix + token
}

// StreamURL builds the absolute stream URL stored in details.auto_host.
// All whitespace is removed from the result.
func StreamURL(host, path string) string {
	return stripWhitespace("https://" + host + path)
}

// ApplyCamera overwrites the camera-derived fields of the monitor.
// Every other attribute is left untouched.
func (m *Monitor) ApplyCamera(camera Camera) {
	m.MID = MonitorID(camera.Number)
	m.Name = m.MID
	m.Host = camera.Server.Domain
	m.Path = StreamPath(camera.Number, camera.TokenL)
	m.Details.AutoHost = StreamURL(m.Host, m.Path)
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
