package conversation

import "fmt"

// PairError describes an assistant tool_use that is not answered correctly by
// the following user message.
type PairError struct {
	Index  int // index of the assistant message
	Reason string
}

func (e *PairError) Error() string {
	return fmt.Sprintf("tool pair at message %d: %s", e.Index, e.Reason)
}

// CheckPairs verifies tool_use/tool_result adjacency:
//   - the message after an assistant tool_use is a user message;
//   - its tool_result blocks come first, before any other block;
//   - the leading tool_result ids cover the tool_use ids exactly.
//
// A trailing assistant tool_use with no reply yet is allowed.
func CheckPairs(msgs []Message) error {
	for i, m := range msgs {
		if m.Role != RoleAssistant {
			continue
		}
		useIDs := toolUseIDs(m)
		if len(useIDs) == 0 {
			continue
		}
		if i+1 == len(msgs) {
			return nil
		}
		next := msgs[i+1]
		if next.Role != RoleUser {
			return &PairError{Index: i, Reason: "not_followed_by_user"}
		}
		ok, resultIDs := leadingToolResultIDs(next)
		switch {
		case !ok:
			return &PairError{Index: i, Reason: "ordering_invalid"}
		case !coversAll(resultIDs, useIDs):
			return &PairError{Index: i, Reason: "missing_results"}
		case !coversAll(useIDs, resultIDs):
			return &PairError{Index: i, Reason: "extra_results"}
		}
	}
	return nil
}

func toolUseIDs(m Message) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, b := range m.Content {
		if tu := b.ToolUse; tu != nil && tu.ID != "" {
			ids[tu.ID] = struct{}{}
		}
	}
	return ids
}

// leadingToolResultIDs returns ok=false when a tool_result follows a non-result block.
func leadingToolResultIDs(m Message) (bool, map[string]struct{}) {
	ids := make(map[string]struct{})
	seenOther := false
	for _, b := range m.Content {
		if tr := b.ToolResult; tr != nil {
			if seenOther {
				return false, ids
			}
			ids[tr.ToolUseID] = struct{}{}
			continue
		}
		seenOther = true
	}
	return true, ids
}

// coversAll reports whether every id in required is present in have.
func coversAll(have, required map[string]struct{}) bool {
	for id := range required {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}
