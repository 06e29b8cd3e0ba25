package conversation

import (
	"fmt"
	"strings"

	_ "embed"

	"github.com/elliotchance/pie/v2"

	"stagetalk/app/service/memory"
)

//go:embed director_prompt_template.txt
var directorPromptTemplate string

// buildDirectorPrompt fills the director template with the roster, scene
// and recent history. Derived fresh every turn, never stored.
func buildDirectorPrompt(scene string, participants []Participant, history []HistoryEntry, summaries []memory.Summary) string {
	var roster strings.Builder
	for _, p := range participants {
		roster.WriteString(fmt.Sprintf("- %s: %s", p.Name, p.Identity))
		if p.Personality != "" {
			roster.WriteString(fmt.Sprintf(" (%s)", p.Personality))
		}
		roster.WriteString("\n")
	}

	var historyText strings.Builder
	if len(history) == 0 {
		historyText.WriteString("The conversation has not started yet.\n")
	}
	for _, entry := range history {
		historyText.WriteString(fmt.Sprintf("%s: %s\n", entry.Sender, entry.Text))
	}

	var summaryText strings.Builder
	if len(summaries) == 0 {
		summaryText.WriteString("None yet.\n")
	}
	for _, s := range summaries {
		summaryText.WriteString(s.Text)
		summaryText.WriteString("\n")
	}

	templateValues := map[string]any{
		"scene":        scene,
		"participants": roster.String(),
		"history":      historyText.String(),
		"summaries":    summaryText.String(),
	}

	prompt := directorPromptTemplate
	for key, value := range templateValues {
		prompt = strings.ReplaceAll(prompt, "{"+key+"}", fmt.Sprint(value))
	}

	return prompt
}

// ParseDirectorLine splits a director response on the first colon into
// speaker and message. When the speaker is not a known participant (the
// model slipped on the format), the whole text is attributed to a random
// roster member instead of dropping the turn. Occasional misattribution
// is the accepted cost.
func (m *Manager) ParseDirectorLine(text string, participants []Participant) Turn {
	speaker, message, found := strings.Cut(text, ":")
	if found {
		speaker = strings.TrimSpace(speaker)
		message = strings.TrimSpace(message)

		idx := pie.FindFirstUsing(participants, func(p Participant) bool {
			return p.Name == speaker
		})
		if idx >= 0 && message != "" {
			return Turn{Speaker: speaker, Message: message}
		}
	}

	fallback := strings.TrimSpace(text)
	if len(participants) == 0 {
		return Turn{Message: fallback}
	}

	chosen := participants[m.randInt(len(participants))]

	return Turn{Speaker: chosen.Name, Message: fallback}
}
