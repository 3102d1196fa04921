// Package logger records job lifecycle events as newline delimited JSON and
// summarizes them.
//
// Each entry is a google.protobuf.Struct with at least an "event" name, a
// "timestamp_micros" and a "session_id" identifying the shell that wrote it.
package logger
