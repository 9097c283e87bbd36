// Package logging builds the slog loggers used across talkcoach and defines
// the standardized structured field keys (artifact_id, stage, correlation_id,
// event_type) that make pipeline runs traceable.
//
// Two output formats exist: a console handler that prints a compact header
// line with indented fields, and the stock JSON handler for machine
// consumption. WithContext enriches a logger with fields carried in the
// request context by the services package.
package logging
