package domain

import (
	"fmt"
	"regexp"
	"time"
)

// DefaultPersonaID is resolved when no other source knows the requested persona.
const DefaultPersonaID = "support"

// ToolRetrieval grants access to long-term memory. Personas may list other
// tools; only those the gateway implements are ever bound.
const ToolRetrieval = "retrieval"

var (
	personaIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
	toolNamePattern  = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)
)

// PersonaProfile describes how a persona speaks and what it may do.
type PersonaProfile struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Personality  string    `json:"personality" yaml:"personality"`
	Style        string    `json:"style" yaml:"style"`
	SystemPrompt string    `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	AllowedTools []string  `json:"allowed_tools" yaml:"allowed_tools"`
	Knowledge    string    `json:"knowledge,omitempty" yaml:"-"`
	Builtin      bool      `json:"builtin" yaml:"-"`
	CreatedAt    time.Time `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"-"`
}

// AllowsTool reports whether the persona has been granted the tool.
func (p *PersonaProfile) AllowsTool(tool string) bool {
	for _, t := range p.AllowedTools {
		if t == tool {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so resolved profiles can be handed out freely.
func (p *PersonaProfile) Clone() *PersonaProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.AllowedTools = append([]string(nil), p.AllowedTools...)
	return &cp
}

// DefaultPersona is the last-resort profile.
func DefaultPersona() *PersonaProfile {
	return &PersonaProfile{
		ID:           DefaultPersonaID,
		Name:         "Konex Support",
		Personality:  "Patient, friendly, precise",
		Style:        "Clear, concise, helpful",
		AllowedTools: []string{ToolRetrieval},
		Builtin:      true,
	}
}

// IsValidPersonaID checks the slug format used for persona identifiers.
func IsValidPersonaID(id string) bool {
	return personaIDPattern.MatchString(id)
}

// ValidatePersona validates a PersonaProfile instance
func ValidatePersona(p *PersonaProfile) error {
	if p == nil {
		return fmt.Errorf("persona cannot be nil")
	}

	if !IsValidPersonaID(p.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidPersonaID, p.ID)
	}

	if p.Name == "" {
		return fmt.Errorf("persona Name is required")
	}

	if p.Personality == "" {
		return fmt.Errorf("persona Personality is required")
	}

	if p.Style == "" {
		return fmt.Errorf("persona Style is required")
	}

	for _, tool := range p.AllowedTools {
		if !toolNamePattern.MatchString(tool) {
			return fmt.Errorf("persona AllowedTools contains invalid tool name: %q", tool)
		}
	}

	return nil
}
