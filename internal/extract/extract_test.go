package extract

import (
	"encoding/json"
	"testing"

	"github.com/pavelanni/assessor/internal/apperr"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantObject string
		wantErr    bool
	}{
		{"plain object", `{"a":1}`, `{"a":1}`, false},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose around object", "Sure! Here it is:\n{\"a\":1}\nHope this helps.", `{"a":1}`, false},
		{"fence and prose", "Result:\n```json\n{\"a\":{\"b\":2}}\n```\nDone", `{"a":{"b":2}}`, false},
		{"questions unwrapped", `{"metadata":{"conceptsExtracted":["x"]},"questions":{"mcqs":[],"subjective":[]}}`, `{"mcqs":[],"subjective":[]}`, false},
		{"questions array kept", `{"questions":[1,2]}`, `{"questions":[1,2]}`, false},
		{"empty", "", "", true},
		{"no braces", "I cannot help with that.", "", true},
		{"truncated", `{"a":1,"b":`, "", true},
		{"array top level", `[{"a":1}]`, `{"a":1}`, false},
		{"string top level", `"hello"`, "", true},
		{"two objects", `{"a":1} and {"b":2}`, "", true},
		{"reversed braces", `} nothing {`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Extract(%q) = %s, want error", tt.raw, got.Object)
				}
				if apperr.KindOf(err) != apperr.KindExtraction {
					t.Errorf("KindOf(err) = %q, want %q", apperr.KindOf(err), apperr.KindExtraction)
				}
				if got.Object != nil || got.Envelope != nil {
					t.Error("failed Extract returned partial data")
				}
				return
			}
			if err != nil {
				t.Fatalf("Extract(%q) error = %v", tt.raw, err)
			}
			if !jsonEqual(t, got.Object, tt.wantObject) {
				t.Errorf("Extract(%q).Object = %s, want %s", tt.raw, got.Object, tt.wantObject)
			}
		})
	}
}

func TestExtractEnvelope(t *testing.T) {
	raw := "```json\n{\"metadata\":{\"conceptsExtracted\":[\"Photosynthesis\",\"Chlorophyll\"]},\"questions\":{\"mcqs\":[],\"subjective\":[{\"question\":\"Why?\",\"idealAnswer\":\"Light.\"}]}}\n```"
	p, err := Extract(raw)
	if err != nil {
		t.Fatal(err)
	}

	var env struct {
		Metadata struct {
			ConceptsExtracted []string `json:"conceptsExtracted"`
		} `json:"metadata"`
	}
	if err := p.DecodeEnvelope(&env); err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	if len(env.Metadata.ConceptsExtracted) != 2 {
		t.Errorf("concepts = %v, want 2 items", env.Metadata.ConceptsExtracted)
	}

	var qs struct {
		Subjective []struct {
			Question string `json:"question"`
		} `json:"subjective"`
	}
	if err := p.Decode(&qs); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(qs.Subjective) != 1 || qs.Subjective[0].Question != "Why?" {
		t.Errorf("Decode() = %+v", qs)
	}
}

func jsonEqual(t *testing.T, got json.RawMessage, want string) bool {
	t.Helper()
	var a, b any
	if err := json.Unmarshal(got, &a); err != nil {
		t.Fatalf("unmarshal got: %v", err)
	}
	if err := json.Unmarshal([]byte(want), &b); err != nil {
		t.Fatalf("unmarshal want: %v", err)
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return string(ja) == string(jb)
}
