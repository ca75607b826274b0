// Package driving defines the interfaces that infrastructure calls IN to core.
//
// These are the "driving" or "primary" ports: the CLI, the HTTP query API
// and the MCP server depend on them and never on concrete services.
package driving
