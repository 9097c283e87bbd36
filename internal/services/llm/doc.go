// Package llm provides a chat completion client for the inference stages.
//
// This package is used by:
//   - Recap stage: rewrite a raw transcript into detail-preserving prose
//   - Summary stage: summarize the recap at multiple focus levels
//   - Analysis stage: structured JSON sentiment and topic extraction
//   - Coaching stage: career-coach feedback on a transcript
//
// # Entry Points
//
// NewClient: construct client from the LLM configuration section.
// Client.CompleteText: send system/user prompts, receive plain text.
// Client.CompleteJSON: send system/user prompts, receive a JSON payload.
// DecodeLLMJSON: decode model JSON output, tolerating code fences.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff. Context cancellation aborts retries immediately.
// Anything else (auth errors, refusals, malformed responses) fails fast;
// stage-level failure handling is the caller's concern.
package llm
