// Package log wraps zerolog with a single global Logger plus
// component/space/agent/op scoped child-logger constructors, so every
// workflow and the gossip engine log through a consistent set of
// fields. Console output in development, JSON in production, chosen
// by Config.JSONOutput.
package log
