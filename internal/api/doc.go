// Package api handles incoming HTTP requests, request validation and
// response formatting for the reminder service. Handlers translate JSON
// bodies into service calls and map service errors to status codes without
// leaking internal details.
package api
