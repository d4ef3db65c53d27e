// Package conversation holds the in-memory state of a single tool-use exchange.
//
// Model:
//   - Message: role (user|assistant) + ordered content blocks.
//   - ContentBlock: exactly one of text, toolUse, toolResult (Converse wire names).
//   - State: append-only; the first message is always role=user.
//   - Invariant: an assistant tool_use is answered by the next user message,
//     whose leading tool_result blocks carry the same ids.
//
// Nothing here is persisted; a State is dropped when its run ends.
package conversation
