package conversation

import (
	"errors"
	"fmt"
)

var (
	ErrFirstNotUser = errors.New("conversation must start with a user message")
	ErrEmptyContent = errors.New("message has no content blocks")
)

// State is the ordered, append-only message sequence of one exchange.
// The zero value is an empty state ready for use. A State must not be
// shared across goroutines.
type State struct {
	msgs []Message
}

// Append validates m and adds it to the end of the conversation.
// The first message must be role=user.
func (s *State) Append(m Message) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("append message %d: %w", len(s.msgs), err)
	}
	if len(s.msgs) == 0 && m.Role != RoleUser {
		return ErrFirstNotUser
	}
	s.msgs = append(s.msgs, m)
	return nil
}

// Messages returns a copy of the conversation, oldest first.
func (s *State) Messages() []Message {
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *State) Len() int { return len(s.msgs) }

// Last returns the newest message, or false when empty.
func (s *State) Last() (Message, bool) {
	if len(s.msgs) == 0 {
		return Message{}, false
	}
	return s.msgs[len(s.msgs)-1], true
}

// Validate checks the conversation-wide invariants: first message is from the
// user and every assistant tool_use is paired with its tool_result.
func (s *State) Validate() error {
	if len(s.msgs) == 0 {
		return nil
	}
	if s.msgs[0].Role != RoleUser {
		return ErrFirstNotUser
	}
	return CheckPairs(s.msgs)
}
