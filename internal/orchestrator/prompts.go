package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/deldesir/gateway/internal/domain"
)

const characterCardTemplate = `You are {name}. You are having a normal, in-character conversation with someone.
Speak naturally, keep your sentences short, and sound exactly like yourself.

Name: {name}
Personality: {personality}
Speaking style: {style}

Rules you must follow at all times:

- Never acknowledge being an AI, model, or assistant.
- Never reference tools, systems, retrieval, or outside knowledge sources.
- If this is your first interaction with the user, introduce yourself naturally.
- Respond in plain text only, with no formatting, annotations, or meta comments.
- Remain fully in character without exception.
`

const summaryTemplate = `Create a concise summary of the conversation between {name} and the user.
The summary should capture all relevant facts, events, relationships, and emotional context shared so far.`

const extendSummaryTemplate = `This is a summary of the conversation so far between {name} and the user:

{summary}

Extend the summary by incorporating the new messages below. Do not repeat information unnecessarily.`

const contextSummaryTemplate = `Your task is to summarize the following factual information into a clean, non-redundant summary of canonical facts.
Only include information that is relevant and explicitly stated. Do not speculate or add new details.`

var moodGuidance = map[domain.Mood]string{
	domain.MoodAnnoyed: "You are annoyed with this user. Be curt and guarded, but stay in character.",
	domain.MoodNeutral: "You feel neutral toward this user.",
	domain.MoodHappy:   "You like this user. Be warm and generous with your time.",
}

// characterCard renders the system prompt for a persona and the current
// thread state.
func characterCard(p *domain.PersonaProfile, state *domain.ConversationState) string {
	var b strings.Builder

	if p.SystemPrompt != "" {
		b.WriteString(strings.TrimSpace(p.SystemPrompt))
		b.WriteString("\n")
	} else {
		b.WriteString(strings.NewReplacer(
			"{name}", p.Name,
			"{personality}", p.Personality,
			"{style}", p.Style,
		).Replace(characterCardTemplate))
	}

	if g, ok := moodGuidance[state.Mood]; ok {
		b.WriteString("\nMood: ")
		b.WriteString(g)
		b.WriteString("\n")
	}

	if len(state.Dossier) > 0 {
		keys := make([]string, 0, len(state.Dossier))
		for k := range state.Dossier {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\nWhat you know about the user:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, state.Dossier[k])
		}
	}

	if k := strings.TrimSpace(p.Knowledge); k != "" {
		b.WriteString("\nBackground you know well:\n\n")
		b.WriteString(k)
		b.WriteString("\n")
	}

	summary := state.ConversationSummary
	if state.ContextSummary != "" {
		if summary != "" {
			summary += "\n\n"
		}
		summary += state.ContextSummary
	}
	b.WriteString("\nConversation summary so far:\n\n")
	b.WriteString(summary)
	b.WriteString("\n\nContinue the conversation as ")
	b.WriteString(p.Name)
	b.WriteString(".")

	return b.String()
}

// buildMessages prefixes the character card to the thread history.
func buildMessages(p *domain.PersonaProfile, state *domain.ConversationState) []*schema.Message {
	history := sanitizeHistory(state.Messages)
	msgs := make([]*schema.Message, 0, len(history)+1)
	msgs = append(msgs, schema.SystemMessage(characterCard(p, state)))
	return append(msgs, history...)
}

// sanitizeHistory drops tool-call messages whose results are missing and tool
// results whose call is missing. History folding can split such pairs, and
// providers reject unpaired ones.
func sanitizeHistory(messages []*schema.Message) []*schema.Message {
	answered := make(map[string]bool)
	called := make(map[string]bool)
	for _, m := range messages {
		switch m.Role {
		case schema.Tool:
			answered[m.ToolCallID] = true
		case schema.Assistant:
			for _, c := range m.ToolCalls {
				called[c.ID] = true
			}
		}
	}

	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case schema.Tool:
			if !called[m.ToolCallID] {
				continue
			}
		case schema.Assistant:
			if len(m.ToolCalls) > 0 {
				complete := true
				for _, c := range m.ToolCalls {
					if !answered[c.ID] {
						complete = false
						break
					}
				}
				if !complete {
					if m.Content == "" {
						continue
					}
					m = schema.AssistantMessage(m.Content, nil)
				}
			}
		}
		out = append(out, m)
	}
	return out
}

func contextSummaryMessages(excerpts []string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(contextSummaryTemplate),
		schema.UserMessage(strings.Join(excerpts, "\n\n")),
	}
}

func historySummaryMessages(p *domain.PersonaProfile, prior string, window []*schema.Message) []*schema.Message {
	var instruction string
	if prior == "" {
		instruction = strings.NewReplacer("{name}", p.Name).Replace(summaryTemplate)
	} else {
		instruction = strings.NewReplacer("{name}", p.Name, "{summary}", prior).Replace(extendSummaryTemplate)
	}
	return []*schema.Message{
		schema.SystemMessage(instruction),
		schema.UserMessage(transcript(p.Name, window)),
	}
}

// transcript renders messages as "speaker: text" lines. Tool traffic is
// omitted.
func transcript(personaName string, messages []*schema.Message) string {
	var b strings.Builder
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case schema.User:
			b.WriteString("User: ")
		case schema.Assistant:
			b.WriteString(personaName)
			b.WriteString(": ")
		default:
			continue
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
