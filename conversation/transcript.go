package conversation

import (
	"encoding/json"
	"io"
	"strings"
)

// Entry is a text-only view of one message. Tool blocks are summarised, not copied.
type Entry struct {
	Role Role   `json:"role"`
	Text string `json:"text,omitempty"`
	Tool string `json:"tool,omitempty"`
}

// Transcript flattens msgs into entries suitable for display.
func Transcript(msgs []Message) []Entry {
	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		e := Entry{Role: m.Role, Text: m.Text()}
		var tools []string
		for _, b := range m.Content {
			switch {
			case b.ToolUse != nil:
				tools = append(tools, "use:"+b.ToolUse.Name)
			case b.ToolResult != nil:
				status := "ok"
				if b.ToolResult.IsError() {
					status = "error"
				}
				tools = append(tools, "result:"+status)
			}
		}
		e.Tool = strings.Join(tools, ",")
		out = append(out, e)
	}
	return out
}

// WriteTranscript writes entries as indented JSON.
func WriteTranscript(w io.Writer, entries []Entry) error {
	b, err := json.MarshalIndent(entries, "", " ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
