// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

// Package web exposes registration and login over HTTP.
//
// Routes:
//   - POST /register takes {displayname, username, email, password} and
//     answers with the public user.
//   - POST /login takes {username, email, password}, sets the
//     refresh_token and access_token cookies and answers {"status":"ok"}.
//
// Failures are written as {"error":{"kind":...,"body":...}} with status
// 400 for ValidationError, 404 for UsernameNotFound, 401 for
// IncorrectPassword and 500 for InternalServerError.
package web
