// Package adapters translates each action kind into calls against the
// external execution environment. Every adapter exposes the same
// contract: Execute(ctx, action) returning a normalized Outcome. Adapters
// never retry, never mutate the record store, and never panic across
// their boundary; the scheduler translates outcomes into state
// transitions.
package adapters
