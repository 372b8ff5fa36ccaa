// Package process implements ports.Endpoint for a local program that
// speaks the fuzzed protocol on stdin and stdout.
package process
