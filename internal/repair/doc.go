// Package repair implements the generate/execute/repair cycle that turns a
// question into a query the store accepts.
//
// A Loop asks a Generator for a first candidate query and executes it. When
// the store rejects the candidate, the store's diagnostic and the rejected
// query go to a Repairer, whose output replaces the candidate. The cycle ends
// when a candidate executes, when MaxAttempts candidates have been executed,
// or when generation itself fails.
package repair
