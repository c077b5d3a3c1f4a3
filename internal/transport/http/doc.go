// Package http exposes the conversion pipeline over HTTP: a convert
// endpoint, dictionary inspection, health and Prometheus metrics, and
// a websocket progress feed. Errors render as application/problem+json.
package http
