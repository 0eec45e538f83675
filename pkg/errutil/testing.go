// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package errutil

import (
	"fmt"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that an oops error sits somewhere in err's chain
// and that the code it reports is code. Wrappers such as auth.InternalError
// are looked through.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	require.Error(t, err)
	_, ok := oops.AsOops(err)
	require.True(t, ok, "expected an oops error in the chain, got %T: %v", err, err)
	assert.Equal(t, code, Code(err), "error: %v", err)
}

// AssertErrorContext asserts that the merged oops context of err maps key
// to value.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected an oops error in the chain, got %T: %v", err, err)
	ctx := oopsErr.Context()
	if assert.Contains(t, ctx, key, "error: %v", err) {
		assert.Equal(t, value, ctx[key], "context key %q", key)
	}
}

// AssertNoSecrets asserts that none of secrets appears in err's message or
// in any of its oops context values. LogError writes both verbatim.
func AssertNoSecrets(t testing.TB, err error, secrets ...string) {
	t.Helper()
	if !assert.Error(t, err) {
		return
	}
	msg := err.Error()
	var ctx map[string]any
	if oopsErr, ok := oops.AsOops(err); ok {
		ctx = oopsErr.Context()
	}
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		assert.NotContains(t, msg, secret, "secret leaked into error message")
		for key, v := range ctx {
			assert.NotContains(t, fmt.Sprint(v), secret, "secret leaked into context key %q", key)
		}
	}
}
