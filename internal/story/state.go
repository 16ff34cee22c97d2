// Package story drives a complete story run: synopsis, chapter plan and
// chapter-by-chapter prose with rolling continuity summaries.
package story

// InitialPastSummary is the story-so-far context given to the first chapter.
const InitialPastSummary = "None. Start by introducing the characters and backstory."

// FinalLookahead replaces the future-chapters summary for the last chapter.
const FinalLookahead = "None. There are no future chapters; conclude the story in this chapter."

// GeneratedChapter is one finished chapter.
type GeneratedChapter struct {
	Index int    `json:"chapter" yaml:"chapter"`
	Title string `json:"title" yaml:"title"`
	Prose string `json:"prose" yaml:"prose"`
}

// NarrativeState is the continuity threaded through chapter generation.
// It has a single writer: the Driver running it.
type NarrativeState struct {
	PastSummary string
	Chapters    []GeneratedChapter
}

// NewNarrativeState returns state for a story with nothing written yet.
func NewNarrativeState() *NarrativeState {
	return &NarrativeState{PastSummary: InitialPastSummary}
}
