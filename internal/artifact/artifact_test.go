package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSinkWriteAndReplace(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, "StratA_best_return_suggested.pine", []byte("v1")))
	require.NoError(t, sink.Write(ctx, "StratA_best_return_suggested.pine", []byte("v2")))

	data, err := os.ReadFile(filepath.Join(dir, "StratA_best_return_suggested.pine"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSinksRejectPathNames(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	mem := NewMemorySink()
	for _, name := range []string{"", "../escape", "a/b", ".hidden"} {
		assert.Error(t, sink.Write(context.Background(), name, nil), name)
		assert.Error(t, mem.Write(context.Background(), name, nil), name)
	}
}

func TestMemorySink(t *testing.T) {
	mem := NewMemorySink()
	src := []byte("chart")
	require.NoError(t, mem.Write(context.Background(), "b.png", src))
	require.NoError(t, mem.Write(context.Background(), "a.csv", []byte("x")))
	src[0] = 'X'

	got, ok := mem.Get("b.png")
	require.True(t, ok)
	assert.Equal(t, "chart", string(got))
	assert.Equal(t, []string{"a.csv", "b.png"}, mem.Names())
}
