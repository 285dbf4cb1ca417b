// Package orchestrator runs one conversational turn as a small state machine:
// resolve the persona, generate, optionally retrieve long-term memory once and
// generate again, fold old history into a rolling summary, then update trust.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// Node names a state of the turn machine.
type Node string

const (
	NodeStart                 Node = "start"
	NodeResolvePersona        Node = "resolve_persona"
	NodeGenerate              Node = "generate"
	NodeToolCall              Node = "tool_call"
	NodeRetrieve              Node = "retrieve"
	NodeSummarizeContext      Node = "summarize_context"
	NodeMaybeSummarizeHistory Node = "maybe_summarize_history"
	NodeFinalize              Node = "finalize"
	NodeEnd                   Node = "end"
)

const (
	DefaultHistoryThreshold = 20
	DefaultRetrievalK       = 5

	// maxSteps bounds the walk; a turn visits at most ten nodes.
	maxSteps = 16
)

// Generator produces the next assistant message. tools is empty when no tool
// may be called.
type Generator interface {
	Generate(ctx context.Context, messages []*schema.Message, tools []*schema.ToolInfo) (*schema.Message, error)
}

// Retriever fetches persona-scoped memory excerpts.
type Retriever interface {
	Retrieve(ctx context.Context, query, persona string, k int) ([]string, error)
}

// PersonaResolver never fails; unknown personas resolve to a default.
type PersonaResolver interface {
	Resolve(ctx context.Context, id string) *domain.PersonaProfile
}

// TrustUpdater scores a user message against the current trust.
type TrustUpdater interface {
	UpdateTrust(score int, text string) int
}

// Event is emitted when the machine enters a node.
type Event struct {
	ThreadID string    `json:"thread_id"`
	Node     Node      `json:"node"`
	At       time.Time `json:"at"`
}

// Observer receives node events. It must not block.
type Observer func(Event)

// TurnOption configures a single RunTurn call.
type TurnOption func(*turn)

// WithObserver reports every node the turn enters.
func WithObserver(fn Observer) TurnOption {
	return func(t *turn) {
		t.observer = fn
	}
}

type Orchestrator struct {
	generator        Generator
	summarizer       Generator
	retriever        Retriever
	personas         PersonaResolver
	trust            TrustUpdater
	historyThreshold int
	retrievalK       int
	now              func() time.Time
}

type Option func(*Orchestrator)

// WithHistoryThreshold sets how many messages trigger a history summary and
// how many are folded into it.
func WithHistoryThreshold(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyThreshold = n
		}
	}
}

// WithRetrievalK sets how many excerpts the retrieval tool returns.
func WithRetrievalK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.retrievalK = k
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New builds an orchestrator. summarizer may be the same generator; a nil
// retriever disables the retrieval tool for every persona.
func New(generator, summarizer Generator, retriever Retriever, personas PersonaResolver, trust TrustUpdater, opts ...Option) *Orchestrator {
	if summarizer == nil {
		summarizer = generator
	}
	o := &Orchestrator{
		generator:        generator,
		summarizer:       summarizer,
		retriever:        retriever,
		personas:         personas,
		trust:            trust,
		historyThreshold: DefaultHistoryThreshold,
		retrievalK:       DefaultRetrievalK,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// turn is the working set of one RunTurn call. Nothing in it outlives the turn.
type turn struct {
	state     *domain.ConversationState
	userInput string
	observer  Observer

	persona       *domain.PersonaProfile
	tool          tool.InvokableTool
	toolInfo      *schema.ToolInfo
	retrievalUsed bool
	pendingCall   *schema.ToolCall
	query         string
	finalText     string
}

// RunTurn advances state by one user message and returns the new state. The
// input state is never modified; on error no partial state is returned.
func (o *Orchestrator) RunTurn(ctx context.Context, state *domain.ConversationState, userInput string, opts ...TurnOption) (*domain.ConversationState, error) {
	if state == nil {
		return nil, fmt.Errorf("conversation state cannot be nil")
	}
	if strings.TrimSpace(userInput) == "" {
		return nil, domain.ErrEmptyMessage
	}

	t := &turn{state: state, userInput: userInput}
	for _, opt := range opts {
		opt(t)
	}

	node := NodeStart
	for step := 0; node != NodeEnd; step++ {
		if step >= maxSteps {
			return nil, fmt.Errorf("turn exceeded %d steps at node %s", maxSteps, node)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t.emit(node, o.now())

		nodeCtx, span := telemetry.StartSpan(ctx, "orchestrator."+string(node), telemetry.SpanAttributes{
			ThreadID: state.ThreadID,
			Persona:  state.Persona,
			Node:     string(node),
		})
		next, err := o.step(nodeCtx, t, node)
		span.Finish(err)
		if err != nil {
			log.Error().Err(err).Str("thread_id", state.ThreadID).Str("node", string(node)).Msg("turn failed")
			return nil, fmt.Errorf("%s: %w", node, err)
		}
		node = next
	}

	log.Info().
		Str("thread_id", t.state.ThreadID).
		Str("persona", t.state.Persona).
		Bool("retrieval_used", t.retrievalUsed).
		Int("trust", t.state.TrustScore).
		Str("mood", string(t.state.Mood)).
		Int("turn", t.state.TurnCount).
		Msg("turn completed")

	return t.state, nil
}

func (t *turn) emit(node Node, at time.Time) {
	if t.observer != nil {
		t.observer(Event{ThreadID: t.state.ThreadID, Node: node, At: at})
	}
}

func (o *Orchestrator) step(ctx context.Context, t *turn, node Node) (Node, error) {
	switch node {
	case NodeStart:
		return o.start(t)
	case NodeResolvePersona:
		return o.resolvePersona(ctx, t)
	case NodeGenerate:
		return o.generate(ctx, t)
	case NodeToolCall:
		return o.toolCall(t)
	case NodeRetrieve:
		return o.retrieve(ctx, t)
	case NodeSummarizeContext:
		return o.summarizeContext(ctx, t)
	case NodeMaybeSummarizeHistory:
		return o.maybeSummarizeHistory(ctx, t)
	case NodeFinalize:
		return o.finalize(t)
	}
	return NodeEnd, fmt.Errorf("unknown node %q", node)
}
