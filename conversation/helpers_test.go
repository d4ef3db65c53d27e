package conversation_test

import (
	"encoding/json"

	"github.com/petasbytes/converse-router/conversation"
)

// Text block constructor
func T(text string) conversation.ContentBlock {
	return conversation.TextBlock(text)
}

// Tool-use block constructor with an empty object input
func TU(id string) conversation.ContentBlock {
	return conversation.ToolUse(id, "websearch", json.RawMessage(`{}`))
}

// Tool-result constructor with a short text payload
func TR(id string, isErr bool) conversation.ContentBlock {
	return conversation.ToolResultMessage(id, []conversation.ToolResultContent{conversation.TextContent("r")}, isErr).Content[0]
}

func Asst(blocks ...conversation.ContentBlock) conversation.Message {
	return conversation.Message{Role: conversation.RoleAssistant, Content: blocks}
}

func User(blocks ...conversation.ContentBlock) conversation.Message {
	return conversation.Message{Role: conversation.RoleUser, Content: blocks}
}
