// Package runner answers one user query with at most one tool round-trip.
//
// Flow:
//
//	user(text) -> assistant(tool_use) -> user(tool_result) -> assistant(text)
//
// Invariants:
//   - every tool_use is answered by exactly one tool_result with the same id,
//     in the user message that immediately follows it.
//   - a second tool_use is not served; Run returns *UnhandledStopReasonError.
package runner
