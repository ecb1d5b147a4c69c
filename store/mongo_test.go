package store

import (
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/flockwise/agrirag/normalize"
	"github.com/flockwise/agrirag/retrieval"
)

func TestMongoFilter(t *testing.T) {
	got := mongoFilter("target weight", retrieval.Filter{
		Breed: "ross 308",
		Sex:   normalize.SexMale,
	})

	if len(got) != 3 {
		t.Fatalf("filter has %d clauses, want $text + breed + sex", len(got))
	}
	if got[0].Key != "$text" {
		t.Errorf("first clause = %q, want $text", got[0].Key)
	}

	want := map[string]string{
		"metadata.breed": "ross 308",
		"metadata.sex":   "male",
	}
	for _, e := range got[1:] {
		v, ok := want[e.Key]
		if !ok {
			t.Errorf("unexpected clause %q", e.Key)
			continue
		}
		if e.Value != v {
			t.Errorf("clause %q = %v, want %v", e.Key, e.Value, v)
		}
	}

	text, ok := got[0].Value.(bson.D)
	if !ok || text[0].Key != "$search" || text[0].Value != "target weight" {
		t.Errorf("text clause = %v", got[0].Value)
	}
}

func TestMongoFilterNoEntities(t *testing.T) {
	got := mongoFilter("anything", retrieval.Filter{})
	if len(got) != 1 {
		t.Fatalf("unfiltered query has %d clauses, want only $text", len(got))
	}
}
