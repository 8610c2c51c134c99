// Package server implements the MCP (Model Context Protocol) server for the
// image optimisation pipeline.
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
//   - image_info: Load an image and report dimensions, format and alpha
//   - image_optim: Watermark, crop, resize and re-encode in one call, the
//     same parameter set as GET /images/optim
//   - image_pipeline: Run an explicit operation list
//
// Images come from an absolute file path, inline base64 (optionally as a
// data: URI) or an http(s) URL. Results are returned as base64, or written
// to output_path when one is given.
//
// Tool calls share the process's pipeline runner, so they run on the same
// bounded worker pool and watermark cache as the HTTP service would.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: {"message": ..., "category": ...} where category is the
//     pipeline error kind, e.g. "decode" or "params_invalid"
//
// # Usage
//
//	srv := server.New(runner, server.Options{AutoOutputTypes: []string{"avif", "webp"}})
//	if err := srv.Run(ctx); err != nil {
//	    return err
//	}
package server
