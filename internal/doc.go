// Package internal contains the core implementation packages for livemd.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the livemd CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - config: Configuration management with validation
//   - errors: Structured error types with recoverability classification
//   - logging: Structured logging on top of log/slog
//   - pathmap: Source-to-output path mapping and validation
//   - render: Markdown to HTML rendering with link rewriting
//   - store: In-memory versioned artifact store
//   - watcher: File system monitoring with debouncing
//   - pipeline: Change coordination between watcher, renderer, and store
//   - server: HTTP server and WebSocket reload hub
//   - version: Build version information
//
// # Inter-Package Communication
//
// Packages communicate through well-defined interfaces:
//
//   - Watcher monitors the content tree and emits debounced change events
//   - Pipeline consumes watcher events, renders sources, and updates the store
//   - Store holds rendered artifacts with monotonically increasing versions
//   - Server reads artifacts from the store and pushes reload signals to
//     browsers only after the corresponding store update is visible
package internal
