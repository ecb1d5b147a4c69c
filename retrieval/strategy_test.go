package retrieval

import (
	"testing"

	"github.com/flockwise/agrirag/conversation"
)

func TestInferStrategy(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		entities conversation.EntitySet
		want     string
	}{
		{
			name:  "numeric target query is factual",
			query: "expected body weight for ross 308 at 35 days",
			want:  "factual",
		},
		{
			name:     "age entity alone is factual",
			query:    "ross 308 males",
			entities: conversation.EntitySet{AgeDays: 21},
			want:     "factual",
		},
		{
			name:  "symptom query is diagnostic",
			query: "birds panting and high mortality in week 4",
			want:  "diagnostic",
		},
		{
			name:  "diagnostic beats factual when both cues present",
			query: "mortality above target weight band",
			want:  "diagnostic",
		},
		{
			name:  "explanation query is conceptual even with factual cue",
			query: "why does heat stress reduce feed intake",
			want:  "conceptual",
		},
		{
			name:  "spanish explanation query is conceptual",
			query: "por qué baja el consumo en verano",
			want:  "conceptual",
		},
		{
			name:  "no cues and no entities is balanced",
			query: "tell me about cobb 500",
			want:  "balanced",
		},
		{
			name:  "empty query is balanced",
			query: "",
			want:  "balanced",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferStrategy(tt.query, tt.entities)
			if got.Name != tt.want {
				t.Errorf("InferStrategy(%q) = %q, want %q", tt.query, got.Name, tt.want)
			}
		})
	}
}

func TestStrategyPresetsAreSane(t *testing.T) {
	for _, s := range []Strategy{strategyFactual, strategyDiagnostic, strategyConceptual, strategyBalanced} {
		if s.FusionWeight < 0 || s.FusionWeight > 1 {
			t.Errorf("strategy %q fusion weight %v out of range", s.Name, s.FusionWeight)
		}
		if s.CountMultiplier < 1 {
			t.Errorf("strategy %q count multiplier %d < 1", s.Name, s.CountMultiplier)
		}
	}

	// factual keeps the tightest candidate pool, conceptual the loosest
	if strategyFactual.FusionWeight >= strategyConceptual.FusionWeight {
		t.Error("factual should weight keyword evidence more than conceptual")
	}
}
