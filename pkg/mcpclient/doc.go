// Package mcpclient talks to an external MCP server over stdio and exposes
// its tools through the tooladapter.ToolCaller interface, so a remote browser
// tool and the in-process rod backend are interchangeable to the engine.
package mcpclient
