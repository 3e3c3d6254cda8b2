// SPDX-License-Identifier: MPL-2.0

// Package testutil holds fixtures shared by the package tests: build
// documents in temporary projects, file helpers that fail the test on error,
// a concurrency-safe log buffer and a limiter for container-backed tests.
package testutil
