// Package stages declares the concrete stage tables for the two artifact
// kinds. Each stage is a pipeline.Definition: a name, its dependency edges,
// an input builder reading upstream results out of the artifact's ledger,
// and an invoke function calling exactly one inference adapter.
//
// Conversation graph:
//
//	transcription -> recap -> summary
//	                       -> analysis
//	transcription -> coaching
//
// Interview graph:
//
//	transcription -> analysis -> coaching
//
// The interview transcription fans out over the answer recordings inside a
// single stage run; per-answer outcomes are sub-results of the one stage.
package stages
