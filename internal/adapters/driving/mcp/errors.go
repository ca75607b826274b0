// Package mcp provides an MCP (Model Context Protocol) server adapter for Pulse.
// It lets AI assistants query the activity log and the identity registry.
package mcp

import "errors"

// ErrMissingActivityService is returned when the activity service is not provided.
var ErrMissingActivityService = errors.New("mcp: activity service is required")
