package source

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect[T any](t *testing.T, seq iter.Seq2[T, error]) []T {
	t.Helper()
	var out []T
	for v, err := range seq {
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

// numbered builds a file body with a header and n data lines.
func numbered(n int) string {
	var b strings.Builder
	b.WriteString("header\n")
	for i := range n {
		fmt.Fprintf(&b, "row%d\n", i)
	}
	return b.String()
}

func chunkLines(chunks []Chunk) []int {
	if len(chunks) == 0 {
		return nil
	}
	out := make([]int, len(chunks))
	for i, c := range chunks {
		out[i] = c.Lines
	}
	return out
}

func TestSlice(t *testing.T) {
	s := Slice([]string{"a.txt", "b.txt", "skip.dat"})
	assert.Equal(t, 3, s.Len())

	first := collect(t, s.Tasks(context.Background()))
	second := collect(t, s.Tasks(context.Background()))
	assert.Equal(t, []string{"a.txt", "b.txt", "skip.dat"}, first)
	assert.Equal(t, first, second)
}

func TestSlice_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := collect(t, Slice([]int{1, 2, 3}).Tasks(ctx))
	assert.Empty(t, got)
}

func TestDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"obj2__0.png", "obj1__0.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	d, err := Dir(dir)
	require.NoError(t, err)

	assert.Equal(t, 3, d.Len())
	assert.Equal(t, []string{"notes.txt", "obj1__0.png", "obj2__0.png"}, collect(t, d.Tasks(context.Background())))
	assert.Equal(t, filepath.Join(dir, "notes.txt"), d.Path("notes.txt"))
}

func TestDir_FollowsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(t.TempDir(), "obj3__0.png")
	require.NoError(t, os.WriteFile(target, nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "obj1__0.png"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	if err := os.Symlink(target, filepath.Join(dir, "obj3__0.png")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(dir, "nested"), filepath.Join(dir, "linkdir")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "gone"), filepath.Join(dir, "broken")))

	d, err := Dir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"obj1__0.png", "obj3__0.png"}, collect(t, d.Tasks(context.Background())))
}

func TestDir_Missing(t *testing.T) {
	_, err := Dir(filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestChunkReader_Sizes(t *testing.T) {
	tests := []struct {
		name      string
		fileLines int
		limit     int
		chunk     int
		dropTail  bool
		wantLen   int
		wantSizes []int
	}{
		{"partial tail", 10, 10, 4, false, 3, []int{4, 4, 2}},
		{"exact multiple keeps empty tail", 8, 8, 4, false, 2, []int{4, 4, 0}},
		{"exact multiple drops empty tail", 8, 8, 4, true, 2, []int{4, 4}},
		{"limit below file length", 100, 10, 4, false, 3, []int{4, 4, 2}},
		{"file shorter than limit", 5, 20, 4, false, 5, []int{4, 1}},
		{"single chunk", 3, 3, 10, false, 1, []int{3}},
		{"zero limit", 5, 0, 4, false, 0, []int{0}},
		{"zero limit dropped", 5, 0, 4, true, 0, nil},
		{"unbounded limit", 3, math.MaxInt, 2, false, math.MaxInt/2 + 1, []int{2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []ChunkOption
			if tt.dropTail {
				opts = append(opts, WithDropEmptyTail())
			}
			r, err := NewChunkStream(strings.NewReader(numbered(tt.fileLines)), tt.limit, tt.chunk, opts...)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLen, r.Len())
			chunks := collect(t, r.Tasks(context.Background()))
			assert.Equal(t, tt.wantSizes, chunkLines(chunks))
			for i, c := range chunks {
				assert.Equal(t, i, c.Index)
			}
		})
	}
}

func TestChunkReader_SkipsHeaderAndKeepsLines(t *testing.T) {
	r, err := NewChunkStream(strings.NewReader("a\tb\n1\t2\n3\t4"), 10, 5)
	require.NoError(t, err)

	chunks := collect(t, r.Tasks(context.Background()))
	require.Len(t, chunks, 1)
	assert.Equal(t, "1\t2\n3\t4\n", chunks[0].Text)
	assert.Equal(t, 2, chunks[0].Lines)
}

func TestChunkReader_NoHeader(t *testing.T) {
	r, err := NewChunkStream(strings.NewReader("x\ny\n"), 10, 5, WithHeaderLines(0))
	require.NoError(t, err)

	chunks := collect(t, r.Tasks(context.Background()))
	require.NotEmpty(t, chunks)
	assert.Equal(t, "x\ny\n", chunks[0].Text)
}

func TestChunkReader_LongLines(t *testing.T) {
	long := strings.Repeat("x", 1<<20)
	r, err := NewChunkStream(strings.NewReader("h\n"+long+"\n"), 1, 1, WithDropEmptyTail())
	require.NoError(t, err)

	chunks := collect(t, r.Tasks(context.Background()))
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0].Text, len(long)+1)
}

func TestChunkReader_FileIsReusable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.tsv")
	require.NoError(t, os.WriteFile(path, []byte(numbered(6)), 0o644))

	r, err := NewChunkReader(path, 6, 4)
	require.NoError(t, err)

	first := collect(t, r.Tasks(context.Background()))
	second := collect(t, r.Tasks(context.Background()))
	assert.Equal(t, []int{4, 2}, chunkLines(first))
	assert.Equal(t, first, second)
	assert.Equal(t, "row0\nrow1\nrow2\nrow3\n", first[0].Text)
}

func TestChunkReader_StreamSingleUse(t *testing.T) {
	r, err := NewChunkStream(strings.NewReader(numbered(2)), 2, 1)
	require.NoError(t, err)

	collect(t, r.Tasks(context.Background()))

	var gotErr error
	for _, err := range r.Tasks(context.Background()) {
		gotErr = err
	}
	assert.ErrorIs(t, gotErr, ErrStreamConsumed)
}

func TestChunkReader_MissingFile(t *testing.T) {
	r, err := NewChunkReader(filepath.Join(t.TempDir(), "absent.csv"), 10, 2)
	require.NoError(t, err)

	var gotErr error
	for _, err := range r.Tasks(context.Background()) {
		gotErr = err
	}
	assert.ErrorIs(t, gotErr, os.ErrNotExist)
}

func TestChunkReader_InvalidChunkSize(t *testing.T) {
	for _, size := range []int{0, -3} {
		_, err := NewChunkReader("unused", 10, size)
		assert.True(t, errors.Is(err, ErrInvalidChunkSize), "size %d: %v", size, err)
	}
}

func TestChunkReader_EarlyBreak(t *testing.T) {
	r, err := NewChunkStream(strings.NewReader(numbered(20)), 20, 2)
	require.NoError(t, err)

	n := 0
	for range r.Tasks(context.Background()) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}
