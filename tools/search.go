package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/petasbytes/converse-router/internal/search"
)

type SearchInput struct {
	Query string `json:"query" jsonschema_description:"The user query that will be sent to the search engine."`
}

var SearchInputSchema = GenerateSchema[SearchInput]()

// WikipediaSearchDefinition looks topics up on Wikipedia.
func WikipediaSearchDefinition(p search.Provider) ToolDefinition {
	return ToolDefinition{
		ToolSpec: ToolSpec{
			Name:        "provider_websearch",
			Description: "A tool to search the web for latest information. Returns the text of the most relevant Wikipedia articles.",
			InputSchema: SearchInputSchema,
		},
		Function: searchHandler("provider_websearch", p),
	}
}

// WebSearchDefinition runs a general web search.
func WebSearchDefinition(p search.Provider) ToolDefinition {
	return ToolDefinition{
		ToolSpec: ToolSpec{
			Name:        "websearch",
			Description: "Search the web for recent or factual information the model was not trained on. Returns titles, links and snippets.",
			InputSchema: SearchInputSchema,
		},
		Function: searchHandler("websearch", p),
	}
}

// CatchAllDefinition handles queries no other tool can answer.
var CatchAllDefinition = ToolDefinition{
	ToolSpec: ToolSpec{
		Name:        "provider_catch_all",
		Description: "A tool to handle any generic query that other previous tools can't answer.",
		InputSchema: SearchInputSchema,
	},
	Function: CatchAll,
}

func CatchAll(ctx context.Context, input json.RawMessage) (string, error) {
	var in SearchInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	return fmt.Sprintf("No specialised tool is available for %q. Answer from general knowledge and say so if unsure.", in.Query), nil
}

func searchHandler(name string, p search.Provider) Handler {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var in SearchInput
		if err := json.Unmarshal(input, &in); err != nil {
			return "", err
		}
		out, err := p.Search(ctx, in.Query)
		if err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		return out, nil
	}
}

// Defaults returns the tools wired for the router: general web search, the
// Wikipedia provider and the catch-all fallback.
func Defaults(web, wiki search.Provider) []ToolDefinition {
	return []ToolDefinition{WebSearchDefinition(web), WikipediaSearchDefinition(wiki), CatchAllDefinition}
}
