package trust

import (
	"testing"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestUpdateTrust(t *testing.T) {
	e := NewEngine(nil, nil)

	tests := []struct {
		name     string
		score    int
		text     string
		expected int
	}{
		{"polite", 50, "thanks a lot", 52},
		{"polite phrase", 50, "Thank you!", 52},
		{"hostile", 52, "you are useless", 47},
		{"hostile wins over polite", 50, "thanks, idiot", 45},
		{"neutral", 50, "what time is it", 50},
		{"case insensitive", 50, "GREAT work", 52},
		{"punctuation ignored", 50, "merci.", 52},
		{"substring is not a word", 50, "whatever you say", 50},
		{"inflection is not a keyword", 50, "I hated that", 50},
		{"clamped at zero", 2, "stupid", 0},
		{"clamped at hundred", 99, "love it", 100},
		{"empty text", 50, "", 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.UpdateTrust(tt.score, tt.text))
		})
	}
}

func TestUpdateTrust_Scenario(t *testing.T) {
	e := NewEngine(nil, nil)
	score := domain.InitialTrustScore

	score = e.UpdateTrust(score, "thanks")
	assert.Equal(t, 52, score)
	assert.Equal(t, domain.MoodNeutral, DeriveMood(score))

	score = e.UpdateTrust(score, "you're useless")
	assert.Equal(t, 47, score)
	assert.Equal(t, domain.MoodNeutral, DeriveMood(score))
}

func TestUpdateTrust_Bounds(t *testing.T) {
	e := NewEngine(nil, nil)
	texts := []string{"hate", "thanks", "hello", "idiot idiot", "love love"}
	for start := -10; start <= 110; start += 7 {
		for _, text := range texts {
			got := e.UpdateTrust(start, text)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		}
	}
}

func TestNewEngine_CustomKeywords(t *testing.T) {
	e := NewEngine([]string{"Rude Bot"}, []string{"cheers"})

	assert.Equal(t, 45, e.UpdateTrust(50, "what a rude   bot"))
	assert.Equal(t, 52, e.UpdateTrust(50, "Cheers!"))
	assert.Equal(t, 50, e.UpdateTrust(50, "thanks"))
}

func TestDeriveMood(t *testing.T) {
	tests := []struct {
		score    int
		expected domain.Mood
	}{
		{0, domain.MoodAnnoyed},
		{29, domain.MoodAnnoyed},
		{30, domain.MoodNeutral},
		{69, domain.MoodNeutral},
		{70, domain.MoodHappy},
		{100, domain.MoodHappy},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, DeriveMood(tt.score), "score %d", tt.score)
	}
}

func TestMergeDossier(t *testing.T) {
	current := map[string]string{"name": "Ada", "city": "Paris"}
	facts := map[string]string{"city": "Lyon", "pet": "cat"}

	merged := MergeDossier(current, facts)

	assert.Equal(t, map[string]string{"name": "Ada", "city": "Lyon", "pet": "cat"}, merged)
	assert.Equal(t, "Paris", current["city"])
	assert.NotNil(t, MergeDossier(nil, nil))
}
