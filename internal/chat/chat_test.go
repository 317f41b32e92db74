package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mozadev/docubot/internal/knowledge"
	"github.com/mozadev/docubot/internal/testutil"
)

// failingRetriever fails the test if the manager searches at all.
type failingRetriever struct {
	t *testing.T
}

func (r *failingRetriever) Search(context.Context, string, ...knowledge.SearchOption) ([]knowledge.Result, error) {
	r.t.Fatal("Search should not be called")
	return nil, nil
}

func TestAskEmptyQuestion(t *testing.T) {
	t.Parallel()

	m := &Manager{
		retriever: &failingRetriever{t: t},
		logger:    testutil.DiscardLogger(),
	}

	for _, question := range []string{"", "   ", "\n\t"} {
		answer, err := m.Ask(context.Background(), uuid.New(), question)
		if err != nil {
			t.Fatalf("Ask(%q) failed: %v", question, err)
		}
		if answer.Text != emptyQuestionReply {
			t.Errorf("Ask(%q) = %q, want canned reply", question, answer.Text)
		}
		if len(answer.Sources) != 0 {
			t.Errorf("Ask(%q) returned %d sources, want 0", question, len(answer.Sources))
		}
		if answer.Confidence != 0 {
			t.Errorf("Ask(%q) confidence = %f, want 0", question, answer.Confidence)
		}
	}
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Error("New() with empty config should fail")
	}
}

func resultFor(source, content string, similarity float32) knowledge.Result {
	return knowledge.Result{
		Document: knowledge.Document{
			Content:  content,
			Metadata: map[string]string{"source": source},
		},
		Similarity: similarity,
	}
}

func TestBuildQuestion(t *testing.T) {
	t.Parallel()

	t.Run("no results", func(t *testing.T) {
		t.Parallel()
		prompt := buildQuestion("what is this?", nil)
		if !strings.Contains(prompt, "(no relevant documents found)") {
			t.Errorf("prompt missing empty-context marker:\n%s", prompt)
		}
		if !strings.Contains(prompt, "Question: what is this?") {
			t.Errorf("prompt missing question:\n%s", prompt)
		}
	})

	t.Run("with results", func(t *testing.T) {
		t.Parallel()
		results := []knowledge.Result{
			resultFor("/docs/a.md", "chunk content here", 0.91),
			resultFor("/docs/b.md", "second chunk", 0.52),
		}
		prompt := buildQuestion("q", results)
		for _, want := range []string{"[1] /docs/a.md", "chunk content here", "[2] /docs/b.md", "0.91"} {
			if !strings.Contains(prompt, want) {
				t.Errorf("prompt missing %q:\n%s", want, prompt)
			}
		}
		if strings.Contains(prompt, "no relevant documents") {
			t.Error("prompt should not claim empty context when results exist")
		}
	})
}

func TestBuildSources(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 300)
	sources := buildSources([]knowledge.Result{
		resultFor("/docs/a.md", "short content", 0.8),
		resultFor("/docs/b.md", long, 0.6),
	})

	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
	if sources[0].Filename != "/docs/a.md" || sources[0].Snippet != "short content" {
		t.Errorf("short source mangled: %+v", sources[0])
	}
	if sources[0].Score != 0.8 {
		t.Errorf("score = %f, want 0.8", sources[0].Score)
	}
	if want := strings.Repeat("x", snippetMaxRunes) + "..."; sources[1].Snippet != want {
		t.Errorf("long snippet not truncated to %d runes", snippetMaxRunes)
	}
}

func TestSnippetRuneBoundary(t *testing.T) {
	t.Parallel()

	// Multibyte text must be cut on rune boundaries.
	long := strings.Repeat("é", snippetMaxRunes+10)
	got := snippet(long)
	if want := strings.Repeat("é", snippetMaxRunes) + "..."; got != want {
		t.Errorf("snippet cut mid-rune: %q", got[:12])
	}

	exact := strings.Repeat("a", snippetMaxRunes)
	if snippet(exact) != exact {
		t.Error("exact-length content should not be truncated")
	}
}

func TestMeanSimilarity(t *testing.T) {
	t.Parallel()

	if got := meanSimilarity(nil); got != 0 {
		t.Errorf("meanSimilarity(nil) = %f, want 0", got)
	}

	results := []knowledge.Result{
		resultFor("a", "x", 0.5),
		resultFor("b", "y", 1.0),
	}
	if got := meanSimilarity(results); got != 0.75 {
		t.Errorf("meanSimilarity = %f, want 0.75", got)
	}
}
