// Package services holds cross-cutting support for the stage adapters: the
// failure taxonomy used to classify stage errors and context carriers that
// thread artifact, stage, and correlation identifiers through a stage run.
//
// Subpackages wrap the external inference providers (llm, transcribe) behind
// small synchronous clients.
package services
