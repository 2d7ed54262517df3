// Package store holds the single state tree the rest of the app reads from.
//
// Every change is an [Action] folded into [State] by the pure [Reduce]. A [Store] serializes
// dispatches and notifies subscribers after each transition, outside its lock. Subscriber panics
// are recovered and land in [State.Error] instead of unwinding into the dispatcher.
package store
