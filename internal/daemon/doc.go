// Package daemon coordinates the long-running clipspace process.
//
// It wires configuration, the catalog and blob stores, the enrichment
// scheduler, the web-monitor engine, and the HTTP API into a single lifecycle
// with flock-based locking to prevent multiple instances. The daemon also owns
// retention: evicting old unpinned items and sweeping orphaned blob
// directories.
//
// Keep orchestration logic here: ingest, enrichment, and monitoring semantics
// live in their own packages while the daemon focuses on startup, shutdown,
// and high-level coordination.
package daemon
