// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package auth_test

import (
	"strconv"
	"time"
)

func formatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
