// Package transcribe provides the speech-to-text client used by the
// transcription stage. It talks to an OpenAI-compatible audio
// transcriptions endpoint via a multipart file upload and returns the
// recognized text. Each call uploads one file; the interview stage calls
// it once per answer recording.
package transcribe
