// Package httpmw provides HTTP middleware for the local preview server.
//
// httpserver.NewHandler composes it outermost first: security headers,
// recovery, request ID, tracing, build headers, metrics, request-scoped
// logging, access log, and the chi router. Query strings and user agents
// are kept out of logs.
package httpmw
