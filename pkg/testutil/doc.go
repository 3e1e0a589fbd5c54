// Package testutil provides in-memory fakes for the engine's host
// interfaces: a memory filesystem, a scripted terminal, a stub
// environment, and an alert capture sink. Tests across the repo wire
// these instead of touching the OS.
package testutil
