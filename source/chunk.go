package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"sync/atomic"
)

var (
	// ErrInvalidChunkSize is returned for a chunk size below one line.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrStreamConsumed is yielded when a reader-backed ChunkReader is
	// iterated a second time.
	ErrStreamConsumed = errors.New("chunk stream already consumed")
)

// Chunk is a run of consecutive lines handed to one worker.
type Chunk struct {
	Index int    // position in the file, starting at 0
	Lines int    // number of lines in Text
	Text  string // the lines, each terminated by '\n'
}

// Empty reports whether the chunk carries no lines.
func (c Chunk) Empty() bool { return c.Lines == 0 }

// ChunkOption configures a ChunkReader.
type ChunkOption func(*ChunkReader)

// WithDropEmptyTail suppresses the empty final chunk that is otherwise
// produced when the number of lines read is an exact multiple of the chunk
// size.
func WithDropEmptyTail() ChunkOption {
	return func(c *ChunkReader) {
		c.dropEmptyTail = true
	}
}

// WithHeaderLines sets how many leading lines are discarded before counting.
// Defaults to 1.
func WithHeaderLines(n int) ChunkOption {
	return func(c *ChunkReader) {
		if n >= 0 {
			c.headerLines = n
		}
	}
}

// ChunkReader streams a text file in fixed-size groups of lines, reading at
// most limit lines after the header. Only one chunk is held in memory at a
// time.
//
// The last chunk is always produced, even when it is empty, so a read that
// ends exactly on a chunk boundary yields one more chunk than Len declares.
// Workers should treat an empty chunk as a skip. WithDropEmptyTail removes
// it.
type ChunkReader struct {
	path   string
	stream io.Reader
	used   atomic.Bool

	limit         int
	chunkSize     int
	headerLines   int
	dropEmptyTail bool
}

// NewChunkReader reads the file at path. The file is opened on every
// iteration, so the reader can be reused.
func NewChunkReader(path string, limit, chunkSize int, opts ...ChunkOption) (*ChunkReader, error) {
	return newChunkReader(path, nil, limit, chunkSize, opts)
}

// NewChunkStream reads from r. It can be iterated only once.
func NewChunkStream(r io.Reader, limit, chunkSize int, opts ...ChunkOption) (*ChunkReader, error) {
	return newChunkReader("", r, limit, chunkSize, opts)
}

func newChunkReader(path string, r io.Reader, limit, chunkSize int, opts []ChunkOption) (*ChunkReader, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, chunkSize)
	}

	c := &ChunkReader{
		path:        path,
		stream:      r,
		limit:       max(limit, 0),
		chunkSize:   chunkSize,
		headerLines: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Len is ceil(limit / chunkSize).
func (c *ChunkReader) Len() int {
	n := c.limit / c.chunkSize
	if c.limit%c.chunkSize != 0 {
		n++
	}
	return n
}

func (c *ChunkReader) Tasks(ctx context.Context) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		r, closeFn, err := c.open()
		if err != nil {
			yield(Chunk{}, err)
			return
		}
		defer closeFn()

		c.read(ctx, bufio.NewReader(r), yield)
	}
}

func (c *ChunkReader) open() (io.Reader, func(), error) {
	if c.stream != nil {
		if c.used.Swap(true) {
			return nil, nil, ErrStreamConsumed
		}
		return c.stream, func() {}, nil
	}

	f, err := os.Open(c.path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", c.path, err)
	}
	return f, func() { _ = f.Close() }, nil
}

func (c *ChunkReader) read(ctx context.Context, br *bufio.Reader, yield func(Chunk, error) bool) {
	for range c.headerLines {
		if _, err := br.ReadString('\n'); err != nil {
			if !errors.Is(err, io.EOF) {
				yield(Chunk{}, fmt.Errorf("read header: %w", err))
				return
			}
			break
		}
	}

	var (
		text  strings.Builder
		lines int
		total int
		index int
	)
	emit := func() bool {
		ch := Chunk{Index: index, Lines: lines, Text: text.String()}
		index++
		lines = 0
		text.Reset()
		return yield(ch, nil)
	}

	for total < c.limit {
		if ctx.Err() != nil {
			return
		}

		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			yield(Chunk{}, fmt.Errorf("read line %d: %w", total+1, err))
			return
		}
		if line == "" {
			break
		}
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}

		text.WriteString(line)
		lines++
		total++

		if lines == c.chunkSize {
			if !emit() {
				return
			}
		}
		if err != nil {
			break
		}
	}

	if lines == 0 && c.dropEmptyTail {
		return
	}
	emit()
}
