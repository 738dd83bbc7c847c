// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Tone steers the voice of brainstorm and write prompts.
type Tone string

const (
	ToneNeutral      Tone = "neutral"
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
	ToneDramatic     Tone = "dramatic"
	ToneHumorous     Tone = "humorous"
	ToneDark         Tone = "dark"
)

// Tones lists the recognised tones.
var Tones = []Tone{ToneNeutral, ToneProfessional, ToneCasual, ToneDramatic, ToneHumorous, ToneDark}

// Valid reports whether t is a recognised tone.
func (t Tone) Valid() bool {
	for _, known := range Tones {
		if t == known {
			return true
		}
	}
	return false
}

// Length selects how much text a write request produces.
type Length string

const (
	LengthScene  Length = "scene"
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// Lengths lists the recognised lengths.
var Lengths = []Length{LengthScene, LengthShort, LengthMedium, LengthLong}

// Valid reports whether l is a recognised length.
func (l Length) Valid() bool {
	for _, known := range Lengths {
		if l == known {
			return true
		}
	}
	return false
}

// TargetWords returns the approximate word budget for l.
func (l Length) TargetWords() int {
	switch l {
	case LengthShort:
		return 300
	case LengthMedium:
		return 800
	case LengthLong:
		return 1600
	default:
		return 500
	}
}

// Brainstorm is an immutable record of generated ideas. A new brainstorm
// request always produces a new record.
type Brainstorm struct {
	ID        string `json:"id" yaml:"id"`
	ProjectID string `json:"project_id" yaml:"project_id"`
	Context   string `json:"context" yaml:"context"`
	Focus     string `json:"focus" yaml:"focus"`
	Tone      Tone   `json:"tone" yaml:"tone"`

	// Ideas holds the generated ideas in model order.
	Ideas []string `json:"ideas" yaml:"ideas"`

	// Sources lists documents whose passages enriched the prompt.
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// GeneratedContent is an immutable drafted text produced from a brainstorm.
type GeneratedContent struct {
	ID           string   `json:"id" yaml:"id"`
	ProjectID    string   `json:"project_id" yaml:"project_id"`
	BrainstormID string   `json:"brainstorm_id" yaml:"brainstorm_id"`
	Format       Template `json:"format" yaml:"format"`
	Length       Length   `json:"length" yaml:"length"`
	Tone         Tone     `json:"prompt_tone" yaml:"prompt_tone"`

	SelectedTables  []string `json:"selected_tables,omitempty" yaml:"selected_tables,omitempty"`
	SelectedBuckets []string `json:"selected_buckets,omitempty" yaml:"selected_buckets,omitempty"`

	Text      string `json:"content" yaml:"content"`
	WordCount int    `json:"word_count" yaml:"word_count"`

	// ContextUsed reports whether tables or document passages fed the prompt.
	ContextUsed bool `json:"context_used" yaml:"context_used"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// QueryMode selects the retrieval strategy of the engine.
type QueryMode string

const (
	// ModeNaive ranks passages by embedding similarity only.
	ModeNaive QueryMode = "naive"
	// ModeLocal ranks passages by full-text keyword match only.
	ModeLocal QueryMode = "local"
	// ModeHybrid fuses vector and keyword rankings.
	ModeHybrid QueryMode = "hybrid"
)

// Valid reports whether m is a known query mode.
func (m QueryMode) Valid() bool {
	switch m {
	case ModeNaive, ModeLocal, ModeHybrid:
		return true
	}
	return false
}

// Passage is one retrieved chunk of document text.
type Passage struct {
	DocumentID string  `json:"document_id" yaml:"document_id"`
	Seq        int     `json:"seq" yaml:"seq"`
	Heading    string  `json:"heading,omitempty" yaml:"heading,omitempty"`
	Content    string  `json:"content" yaml:"content"`
	Score      float64 `json:"score" yaml:"score"`
}

// QueryResult is the synthesized answer to a natural-language query.
type QueryResult struct {
	ProjectID string    `json:"project_id" yaml:"project_id"`
	Query     string    `json:"query" yaml:"query"`
	Mode      QueryMode `json:"mode" yaml:"mode"`
	Answer    string    `json:"result" yaml:"result"`

	// ResultLength is the answer length in characters.
	ResultLength int `json:"result_length" yaml:"result_length"`

	// Confidence is the best passage score normalised to [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	Sources []Passage `json:"sources" yaml:"sources"`
}
