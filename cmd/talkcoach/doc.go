// Package main hosts the talkcoach CLI entrypoint and command graph.
//
// The Cobra-based command tree registers recordings with the artifact
// ledger, inspects pipeline progress, requests stage regeneration, and
// scaffolds configuration. Commands talk to a running daemon over its
// HTTP status API when one is reachable and fall back to direct ledger
// access otherwise.
//
// Keep this package lean: add new functionality by extending the
// internal packages first, then surface it through dedicated commands
// or flags here.
package main
