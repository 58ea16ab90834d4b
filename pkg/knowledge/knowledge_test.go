package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hashEmbed is a deterministic stand-in for a real embeddings endpoint: it
// maps text to a small unit vector so similar prefixes land close together.
func hashEmbed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r % 13)
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	inv := 1 / sqrt32(norm)
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}

func sqrt32(f float32) float32 {
	x := f
	for i := 0; i < 20; i++ {
		x = (x + f/x) / 2
	}
	return x
}

func newTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	s, err := New(cfg, WithEmbeddingFunc(chromem.EmbeddingFunc(hashEmbed)))
	require.NoError(t, err)
	return s
}

func TestAddAndQuery(t *testing.T) {
	s := newTestStore(t, Config{TopK: 2})
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "Newton's laws of motion govern classical mechanics.", "mechanics.md"))
	require.NoError(t, s.Add(ctx, "The mole is the SI unit for amount of substance.", "chemistry.md"))
	assert.Equal(t, 2, s.Count())

	results, err := s.Query(ctx, "Newton's laws")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 2)
	assert.NotEmpty(t, results[0].Content)
	assert.NotEmpty(t, results[0].Source)
}

func TestQueryEmptyStore(t *testing.T) {
	s := newTestStore(t, Config{})

	results, err := s.Query(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, results)

	assert.Equal(t, "", s.BuildContext(context.Background(), "anything"))
}

func TestBuildContext(t *testing.T) {
	s := newTestStore(t, Config{TopK: 5})
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "Kinetic energy is the energy of motion.", "energy.md"))
	require.NoError(t, s.Add(ctx, "Potential energy depends on position.", "energy.md"))

	contextText := s.BuildContext(ctx, "energy")
	assert.Contains(t, contextText, "energy")
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("Ohm's law relates voltage and current."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "more.txt"), []byte("Resistance is measured in ohms."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.pdf"), []byte("binary"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.md"), []byte("   "), 0o644))

	s := newTestStore(t, Config{})

	count, err := s.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Empty and non-text files are skipped.
	assert.Equal(t, 2, s.Count())
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := newTestStore(t, Config{Path: dir, Collection: "physics"})
	require.NoError(t, s.Add(ctx, "Work equals force times displacement.", "work.md"))

	reopened := newTestStore(t, Config{Path: dir, Collection: "physics"})
	assert.Equal(t, 1, reopened.Count())
}
