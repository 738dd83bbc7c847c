// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/miranda/internal/llm"
	"github.com/pdiddy/miranda/pkg/types"
)

// --- test helpers ---

// bagEmbedder hashes content words into a small vector.
type bagEmbedder struct{ calls int }

func (b *bagEmbedder) Configured() bool { return true }

func (b *bagEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	b.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 64)
		for _, term := range terms(t) {
			h := fnv.New32a()
			h.Write([]byte(term))
			v[h.Sum32()%64]++
		}
		out[i] = v
	}
	return out, nil
}

type echoCompleter struct{ prompts []string }

func (e *echoCompleter) Configured() bool { return true }

func (e *echoCompleter) Complete(_ context.Context, prompt string, _ llm.Params) (string, error) {
	e.prompts = append(e.prompts, prompt)
	return "answer", nil
}

func openTest(t *testing.T, opts Options) *Handle {
	t.Helper()
	h, err := Open(t.TempDir(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

// --- chunking ---

func TestChunkByHeadings(t *testing.T) {
	md := "intro line\n# Title\nbody one\n## Part\nbody two\n### Empty\n"
	secs := chunkByHeadings(md)
	require.Len(t, secs, 4)
	assert.Equal(t, "", secs[0].heading)
	assert.Equal(t, "Title", secs[1].heading)
	assert.Equal(t, "body two", secs[2].body)
	assert.Equal(t, "Empty", secs[3].body)
}

func TestSplitText_Overlap(t *testing.T) {
	text := strings.Repeat("word ", 100)
	pieces := splitText(text, 50, 10)
	require.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		assert.LessOrEqual(t, len([]rune(p)), 50)
	}
}

func TestSplitText_Short(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitText("short", 100, 10))
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"miranda", "writing", "assistant"}, terms("What is Miranda? A writing-assistant, Miranda!"))
}

// --- insert and retrieve ---

func TestInsertAndRetrieve_Local(t *testing.T) {
	h := openTest(t, Options{ChunkSize: 200})
	ctx := context.Background()

	_, err := h.Insert(ctx, "doc_a", "# Miranda\nMiranda is a writing assistant for screenwriters.")
	require.NoError(t, err)
	_, err = h.Insert(ctx, "doc_b", "# Cooking\nBoil the pasta for ten minutes.")
	require.NoError(t, err)

	passages, err := h.Retrieve(ctx, "What is Miranda?", 3, types.ModeLocal, nil)
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	assert.Equal(t, "doc_a", passages[0].DocumentID)
	assert.Equal(t, "Miranda", passages[0].Heading)

	restricted, err := h.Retrieve(ctx, "Miranda", 3, types.ModeLocal, []string{"doc_b"})
	require.NoError(t, err)
	assert.Empty(t, restricted)
}

func TestInsert_ReplacesDocument(t *testing.T) {
	h := openTest(t, Options{})
	ctx := context.Background()

	_, err := h.Insert(ctx, "doc_a", "first version about dragons")
	require.NoError(t, err)
	_, err = h.Insert(ctx, "doc_a", "second version about castles")
	require.NoError(t, err)

	n, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	passages, err := h.Retrieve(ctx, "dragons", 3, types.ModeLocal, nil)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestDelete(t *testing.T) {
	h := openTest(t, Options{})
	ctx := context.Background()

	_, err := h.Insert(ctx, "doc_a", "castles and dragons")
	require.NoError(t, err)
	require.NoError(t, h.Delete(ctx, "doc_a"))

	n, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	passages, err := h.Retrieve(ctx, "dragons", 3, types.ModeLocal, nil)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestInsert_CancelledLeavesScopeUnchanged(t *testing.T) {
	h := openTest(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Insert(ctx, "doc_a", "some text")
	require.Error(t, err)

	n, err := h.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsert_NoText(t *testing.T) {
	h := openTest(t, Options{})
	_, err := h.Insert(context.Background(), "doc_a", "  \n\n ")
	assert.Error(t, err)
}

func TestRetrieve_HybridUsesVectors(t *testing.T) {
	emb := &bagEmbedder{}
	h := openTest(t, Options{Embedder: emb})
	ctx := context.Background()

	_, err := h.Insert(ctx, "doc_a", "The detective walks through the rainy city at night.")
	require.NoError(t, err)
	_, err = h.Insert(ctx, "doc_b", "Quarterly revenue grew in the business unit.")
	require.NoError(t, err)

	passages, err := h.Retrieve(ctx, "rainy city detective", 2, types.ModeHybrid, nil)
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	assert.Equal(t, "doc_a", passages[0].DocumentID)
	assert.InDelta(t, 1.0, passages[0].Score, 1e-9)

	naive, err := h.Retrieve(ctx, "revenue business", 1, types.ModeNaive, nil)
	require.NoError(t, err)
	require.Len(t, naive, 1)
	assert.Equal(t, "doc_b", naive[0].DocumentID)
}

// --- query ---

func TestQuery_EmptyScope(t *testing.T) {
	h := openTest(t, Options{Completer: &echoCompleter{}})
	_, err := h.Query(context.Background(), "anything", types.ModeHybrid, 3)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestQuery_SynthesizesFromPassages(t *testing.T) {
	comp := &echoCompleter{}
	h := openTest(t, Options{Completer: comp, Embedder: &bagEmbedder{}})
	ctx := context.Background()

	_, err := h.Insert(ctx, "doc_a", "Miranda is a project-scoped writing assistant.")
	require.NoError(t, err)

	ans, err := h.Query(ctx, "What is Miranda?", types.ModeHybrid, 3)
	require.NoError(t, err)
	assert.Equal(t, "answer", ans.Text)
	require.Len(t, ans.Passages, 1)
	assert.Greater(t, ans.Confidence, 0.0)
	require.Len(t, comp.prompts, 1)
	assert.Contains(t, comp.prompts[0], "Miranda is a project-scoped writing assistant.")
	assert.Contains(t, comp.prompts[0], "Question: What is Miranda?")
}

func TestVectorRoundTrip(t *testing.T) {
	v := []float32{0.5, -1, 3.25}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
	assert.InDelta(t, 1.0, cosine(v, v), 1e-9)
}
