// Package services groups the long-lived docrag services behind one registry.
//
// The CLI builds a Registry once (see internal/app) and hands it to the HTTP
// and MCP servers, so neither surface constructs backends of its own.
package services
