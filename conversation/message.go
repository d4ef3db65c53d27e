package conversation

import (
	"encoding/json"
	"fmt"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ResultStatus marks a tool result as failed. Empty means success.
type ResultStatus string

const StatusError ResultStatus = "error"

// ContentBlock is a discriminated union; exactly one field is set.
type ContentBlock struct {
	Text       *string          `json:"text,omitempty"`
	ToolUse    *ToolUseBlock    `json:"toolUse,omitempty"`
	ToolResult *ToolResultBlock `json:"toolResult,omitempty"`
}

type ToolUseBlock struct {
	ID    string          `json:"toolUseId"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type ToolResultBlock struct {
	ToolUseID string              `json:"toolUseId"`
	Content   []ToolResultContent `json:"content"`
	Status    ResultStatus        `json:"status,omitempty"`
}

// IsError reports whether the tool result signals a failure.
func (b ToolResultBlock) IsError() bool { return b.Status == StatusError }

// ToolResultContent is either text or a JSON value, never both.
type ToolResultContent struct {
	Text *string         `json:"text,omitempty"`
	JSON json.RawMessage `json:"json,omitempty"`
}

type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// BlockError reports a content block that does not hold exactly one variant.
type BlockError struct {
	Index    int
	Variants int
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("content block %d: want exactly one variant, got %d", e.Index, e.Variants)
}

func TextBlock(s string) ContentBlock {
	return ContentBlock{Text: &s}
}

func ToolUse(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{ToolUse: &ToolUseBlock{ID: id, Name: name, Input: input}}
}

func TextContent(s string) ToolResultContent {
	return ToolResultContent{Text: &s}
}

func JSONContent(raw json.RawMessage) ToolResultContent {
	return ToolResultContent{JSON: raw}
}

// UserText returns a user message carrying a single text block.
func UserText(s string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{TextBlock(s)}}
}

// ToolResultMessage wraps one tool result in a role=user message.
func ToolResultMessage(toolUseID string, content []ToolResultContent, isError bool) Message {
	res := &ToolResultBlock{ToolUseID: toolUseID, Content: content}
	if isError {
		res.Status = StatusError
	}
	return Message{Role: RoleUser, Content: []ContentBlock{{ToolResult: res}}}
}

func (b ContentBlock) variants() int {
	n := 0
	if b.Text != nil {
		n++
	}
	if b.ToolUse != nil {
		n++
	}
	if b.ToolResult != nil {
		n++
	}
	return n
}

func (c ToolResultContent) valid() bool {
	return (c.Text != nil) != (c.JSON != nil)
}

// Validate checks the role and that every block holds exactly one variant.
func (m Message) Validate() error {
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return fmt.Errorf("invalid role %q", m.Role)
	}
	if len(m.Content) == 0 {
		return ErrEmptyContent
	}
	for i, b := range m.Content {
		if n := b.variants(); n != 1 {
			return &BlockError{Index: i, Variants: n}
		}
		if tr := b.ToolResult; tr != nil {
			if tr.ToolUseID == "" {
				return fmt.Errorf("content block %d: tool result without toolUseId", i)
			}
			for j, c := range tr.Content {
				if !c.valid() {
					return fmt.Errorf("content block %d: tool result content %d: want exactly one of text or json", i, j)
				}
			}
		}
		if tu := b.ToolUse; tu != nil && (tu.ID == "" || tu.Name == "") {
			return fmt.Errorf("content block %d: tool use without id or name", i)
		}
	}
	return nil
}

// ToolUses returns the tool_use blocks of m in order.
func (m Message) ToolUses() []ToolUseBlock {
	var out []ToolUseBlock
	for _, b := range m.Content {
		if b.ToolUse != nil {
			out = append(out, *b.ToolUse)
		}
	}
	return out
}

// Text joins the text blocks of m with newlines.
func (m Message) Text() string {
	var s string
	for _, b := range m.Content {
		if b.Text == nil || *b.Text == "" {
			continue
		}
		if s != "" {
			s += "\n"
		}
		s += *b.Text
	}
	return s
}

// UnmarshalJSON decodes a Converse content block and fails fast when the
// payload does not carry exactly one known variant.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	type plain ContentBlock
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if n := ContentBlock(p).variants(); n != 1 {
		return &BlockError{Variants: n}
	}
	*b = ContentBlock(p)
	return nil
}
