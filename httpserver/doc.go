// Package httpserver provides the REST boundary for code execution.
//
// The httpserver package exposes the execution operation over HTTP with
// chi: POST /execute accepts a JSON request with code, an optional list of
// dependency specifiers and an optional environment name, and always answers
// 200 with a structured result. Failures of the executed code are reported
// in-band via the error field, never as a protocol-level error. The server
// also serves service info, a health endpoint and Prometheus metrics.
//
// Usage:
//
//	srv := httpserver.New(cfg, logger, orchestrator, metrics)
//	err := srv.Start()
package httpserver
