package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/trust"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) start(t *turn) (Node, error) {
	working := t.state.Clone()
	working.Messages = append(working.Messages, schema.UserMessage(t.userInput))
	working.RetrievedContext = nil
	working.ContextSummary = ""
	working.FinalResponse = ""
	if working.Dossier == nil {
		working.Dossier = map[string]string{}
	}
	t.state = working
	return NodeResolvePersona, nil
}

func (o *Orchestrator) resolvePersona(ctx context.Context, t *turn) (Node, error) {
	t.persona = o.personas.Resolve(ctx, t.state.Persona)
	if t.state.Persona == "" {
		t.state.Persona = t.persona.ID
	}

	if o.retriever != nil && t.persona.AllowsTool(domain.ToolRetrieval) {
		rt, err := newRetrievalTool(o.retriever, t.state.Persona, o.retrievalK)
		if err != nil {
			return "", fmt.Errorf("failed to build retrieval tool: %w", err)
		}
		info, err := rt.Info(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to describe retrieval tool: %w", err)
		}
		t.tool = rt
		t.toolInfo = info
	}
	return NodeGenerate, nil
}

func (o *Orchestrator) generate(ctx context.Context, t *turn) (Node, error) {
	var tools []*schema.ToolInfo
	if t.tool != nil && !t.retrievalUsed {
		tools = []*schema.ToolInfo{t.toolInfo}
	}

	messages := buildMessages(t.persona, t.state)
	reply, err := o.generator.Generate(ctx, messages, tools)
	if err != nil {
		return "", err
	}
	if reply == nil {
		return "", fmt.Errorf("generator returned no message")
	}
	reply = domain.CloneMessage(reply)
	reply.Role = schema.Assistant

	var call *schema.ToolCall
	if len(tools) > 0 {
		for i := range reply.ToolCalls {
			if reply.ToolCalls[i].Function.Name == RetrievalToolName {
				c := reply.ToolCalls[i]
				call = &c
				break
			}
		}
	}

	if call != nil {
		if call.ID == "" {
			call.ID = "call_" + RetrievalToolName
		}
		reply.ToolCalls = []schema.ToolCall{*call}
		t.state.Messages = append(t.state.Messages, reply)
		t.pendingCall = call
		return NodeToolCall, nil
	}

	if len(reply.ToolCalls) > 0 {
		log.Debug().Int("tool_calls", len(reply.ToolCalls)).Str("thread_id", t.state.ThreadID).Msg("ignoring tool calls")
		reply.ToolCalls = nil
	}
	if reply.Content != "" {
		t.state.Messages = append(t.state.Messages, reply)
	}
	t.finalText = reply.Content
	return NodeMaybeSummarizeHistory, nil
}

type retrievalArgs struct {
	Query string `json:"query"`
}

func (o *Orchestrator) toolCall(t *turn) (Node, error) {
	var args retrievalArgs
	if t.pendingCall != nil && t.pendingCall.Function.Arguments != "" {
		if err := sonic.UnmarshalString(t.pendingCall.Function.Arguments, &args); err != nil {
			log.Debug().Err(err).Msg("unparseable retrieval arguments, using user input")
		}
	}
	t.query = strings.TrimSpace(args.Query)
	if t.query == "" {
		t.query = t.userInput
	}
	t.retrievalUsed = true
	return NodeRetrieve, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, t *turn) (Node, error) {
	in, err := sonic.MarshalString(retrievalArgs{Query: t.query})
	if err != nil {
		return "", err
	}

	out, err := t.tool.InvokableRun(ctx, in)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve context: %w", err)
	}

	var excerpts []string
	if err := sonic.UnmarshalString(out, &excerpts); err != nil {
		return "", fmt.Errorf("failed to decode retrieval result: %w", err)
	}

	t.state.RetrievedContext = excerpts
	t.state.Messages = append(t.state.Messages, schema.ToolMessage(out, t.pendingCall.ID))
	t.pendingCall = nil
	return NodeSummarizeContext, nil
}

func (o *Orchestrator) summarizeContext(ctx context.Context, t *turn) (Node, error) {
	if len(t.state.RetrievedContext) == 0 {
		t.state.ContextSummary = ""
		return NodeGenerate, nil
	}

	msg, err := o.summarizer.Generate(ctx, contextSummaryMessages(t.state.RetrievedContext), nil)
	if err != nil {
		return "", fmt.Errorf("failed to summarize context: %w", err)
	}
	t.state.ContextSummary = strings.TrimSpace(msg.Content)
	return NodeGenerate, nil
}

func (o *Orchestrator) maybeSummarizeHistory(ctx context.Context, t *turn) (Node, error) {
	n := len(t.state.Messages)
	if n <= o.historyThreshold {
		return NodeFinalize, nil
	}

	window := t.state.Messages[n-o.historyThreshold:]
	msgs := historySummaryMessages(t.persona, t.state.ConversationSummary, window)

	msg, err := o.summarizer.Generate(ctx, msgs, nil)
	if err != nil {
		return "", fmt.Errorf("failed to summarize history: %w", err)
	}

	t.state.ConversationSummary = strings.TrimSpace(msg.Content)
	t.state.Messages = t.state.Messages[:n-o.historyThreshold]
	log.Debug().Str("thread_id", t.state.ThreadID).Int("folded", o.historyThreshold).Int("remaining", len(t.state.Messages)).Msg("history summarized")
	return NodeFinalize, nil
}

func (o *Orchestrator) finalize(t *turn) (Node, error) {
	t.state.TrustScore = o.trust.UpdateTrust(t.state.TrustScore, t.userInput)
	t.state.Mood = trust.DeriveMood(t.state.TrustScore)
	t.state.FinalResponse = t.finalText
	t.state.TurnCount++
	t.state.UpdatedAt = o.now().UTC()
	return NodeEnd, nil
}
