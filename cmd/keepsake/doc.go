// Package main hosts the keepsake CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into
// orchestrator operations: backing up and restoring individual asset
// files, listing version history, following renames, health checks,
// and configuration scaffolding. It centralizes configuration
// resolution and logger setup so subcommands can focus on user
// experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the
// internal packages first, then surface it through dedicated commands
// or flags here.
package main
