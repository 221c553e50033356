// Package server implements the MCP (Model Context Protocol) server for text extraction.
//
// This package provides a JSON-RPC 2.0 server that exposes the extraction
// pipeline through the MCP protocol, so AI assistants and other MCP clients
// can pull the text out of screenshots, scans and photos.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Extraction:
//   - extract_text: Recognize the text in an image (path or base64)
//   - image_info: Validate an image and report its metadata
//   - text_statistics: Count characters, words and lines
//
// Status:
//   - list_languages: Supported language codes and the default set
//   - backend_status: Remote credential presence, model, OCR engine
//     version and loaded language sets
//
// Images are passed either as an absolute file path or as base64 bytes
// (a data: URL is accepted). Nothing is cached between calls except the
// OCR model sets, which are owned by the local backend.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The categorized reason, for example "invalid image: empty
//     image" or "all backends failed: remote: missing credential; local:
//     timeout"
//
// # Usage
//
// The server is typically started by an MCP client:
//
//	srv := server.New(server.Options{Orchestrator: orch, Config: cfg})
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
