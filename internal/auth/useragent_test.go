// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tasktrail/tasktrail/internal/auth"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want auth.Device
	}{
		{
			name: "chrome on windows 7",
			ua:   "Mozilla/5.0 (Windows NT 6.1; WOW64) AppleWebKit/535.19 (KHTML, like Gecko) Chrome/18.0.1025.168 Safari/535.19",
			want: auth.Device{OS: "Windows 7", Browser: "Chrome"},
		},
		{
			name: "edge on windows 10",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/83.0.4103.61 Safari/537.36 Edg/83.0.478.37",
			want: auth.Device{OS: "Windows 10", Browser: "Edge"},
		},
		{
			name: "command line client has no os",
			ua:   "curl/7.28.1",
			want: auth.Device{OS: auth.Unknown, Browser: "curl"},
		},
		{
			name: "empty",
			ua:   "",
			want: auth.Device{OS: auth.Unknown, Browser: auth.Unknown},
		},
		{
			name: "whitespace",
			ua:   "   ",
			want: auth.Device{OS: auth.Unknown, Browser: auth.Unknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.ParseUserAgent(tt.ua))
		})
	}
}

func TestParseUserAgent_NeverReturnsEmptyLabels(t *testing.T) {
	for _, ua := range []string{"()", ";;;", "Mozilla/5.0 ()", "\x00\x01", "/////"} {
		d := auth.ParseUserAgent(ua)
		assert.NotEmpty(t, d.OS, "ua %q", ua)
		assert.NotEmpty(t, d.Browser, "ua %q", ua)
	}
}
