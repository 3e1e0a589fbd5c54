// Package types defines the core data model for runlet: actions, their
// lifecycle states, execution outcomes, alert payloads, and the narrow
// interfaces the engine requires from its hosting environment.
//
// The engine never reaches into the operating system directly. Everything
// it needs from the outside world arrives through the FS, Terminal and
// Environment interfaces declared here, which keeps every other package
// testable against in-memory fakes.
package types
