package orchestrator

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

// RetrievalToolName is the function name the model calls to search memory.
const RetrievalToolName = "retrieve_context"

const retrievalToolDesc = `Read-only search over long-term memory for facts relevant to the active persona and the user's question.
Use it only when you need recall you do not already have: past events, who said what, product or service details, policies.
Do not use it for small talk, opinions, or anything already in the conversation.`

type retrieveInput struct {
	Query string `json:"query" jsonschema:"description=natural-language question to search memory for"`
}

// newRetrievalTool binds the tool to persona. The persona comes from the
// conversation state and is never taken from model arguments.
func newRetrievalTool(r Retriever, persona string, k int) (tool.InvokableTool, error) {
	return utils.InferTool(RetrievalToolName, retrievalToolDesc,
		func(ctx context.Context, in retrieveInput) ([]string, error) {
			texts, err := r.Retrieve(ctx, in.Query, persona, k)
			if err != nil {
				return nil, err
			}
			if texts == nil {
				texts = []string{}
			}
			return texts, nil
		})
}
