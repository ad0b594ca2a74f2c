// Package telemetry exports reposcan spans over OTLP/HTTP.
//
// Tracing is off by default. When enabled, each search pass produces a
// "reposcan.search" span with child spans for repository resolution, the
// code search and every content fetch.
package telemetry
