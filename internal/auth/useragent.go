// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package auth

import (
	"strings"

	"github.com/mssola/useragent"
)

// Unknown labels a device attribute that could not be determined.
const Unknown = "Unknown"

// Device is the OS and browser a request came from.
type Device struct {
	OS      string
	Browser string
}

// ParseUserAgent extracts OS and browser names. Missing or unrecognized
// parts are reported as Unknown; it never fails.
func ParseUserAgent(raw string) Device {
	d := Device{OS: Unknown, Browser: Unknown}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return d
	}

	ua := useragent.New(raw)
	if os := strings.TrimSpace(ua.OS()); os != "" {
		d.OS = os
	}
	if name, _ := ua.Browser(); strings.TrimSpace(name) != "" {
		d.Browser = name
	}
	return d
}
