// Package logx is a thin structured-logging layer over zerolog.
//
// It keeps call sites uniform (Logger + Field helpers) while letting the
// binary decide sinks: a human-readable console writer, an append-only JSON
// file, or both.
package logx
