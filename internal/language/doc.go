// Package language normalizes language values reported by transcription
// services. Backends variously return ISO 639-1 codes, ISO 639-2 codes,
// or full word forms ("english"); transcript results store the ISO 639-1
// form and surfaces that display it use DisplayName.
package language
