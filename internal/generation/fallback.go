package generation

import "studysync/internal/domain"

// Fallbacks maps kinds to canned results used when a response is malformed.
// Kinds without an entry surface the malformed error instead.
type Fallbacks map[domain.InstructionKind]func() domain.Result

// DefaultFallbacks only covers notes; a canned grade or quiz would mislead.
func DefaultFallbacks() Fallbacks {
	return Fallbacks{domain.KindNotesSummary: CannedNotes}
}

// CannedNotes is the placeholder notes payload.
func CannedNotes() domain.Result {
	return domain.Result{
		Kind:     domain.KindNotesSummary,
		Fallback: true,
		Notes: &domain.NotesSummary{
			Title:       "Study Notes",
			Subtitle:    "Key Concepts",
			ColorScheme: []string{"#FBBF24", "#3B82F6", "#EC4899"},
			Concepts: []domain.Concept{
				{Title: "Main idea", Icon: "brain", Description: "Skim the uploaded pages and write the central idea in one sentence.", ColorTag: "#FBBF24"},
				{Title: "Supporting details", Icon: "lightbulb", Description: "List the facts, formulas or examples that back up the main idea.", ColorTag: "#3B82F6"},
				{Title: "Connections", Icon: "sparkles", Description: "Note how this topic links to what you already know.", ColorTag: "#EC4899"},
			},
			KeyStats: []domain.KeyStat{{Label: "Status", Value: "Generated offline", Icon: "check-circle"}},
			Summary:  "We couldn't build detailed notes this time, so here's a study checklist to work through.",
		},
	}
}
