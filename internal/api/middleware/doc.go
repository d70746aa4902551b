// Package middleware provides HTTP middleware for request tracing, request
// metrics and per-client rate limiting.
package middleware
