package batch

import (
	"context"
	"errors"
	"fmt"
)

// Chunk size limits for ProcessChunks.
const (
	DefaultChunkSize = 100
	MinChunkSize     = 1
	MaxChunkSize     = 1000
)

// Common chunking errors.
var (
	ErrInvalidChunkSize = errors.New("chunk size must be between 1 and 1000")
	ErrNilCallback      = errors.New("chunk callback cannot be nil")
)

// ChunkCallback processes one chunk. chunkIndex is 0-based.
type ChunkCallback[T any] func(ctx context.Context, chunk []T, chunkIndex int) error

// ProcessChunks walks items in chunks of size and stops on the first error.
// An empty items slice is a no-op.
func ProcessChunks[T any](ctx context.Context, items []T, size int, callback ChunkCallback[T]) error {
	if size < MinChunkSize || size > MaxChunkSize {
		return fmt.Errorf("%w: got %d", ErrInvalidChunkSize, size)
	}
	if callback == nil {
		return ErrNilCallback
	}

	for chunkIndex, bounds := range ChunkBounds(len(items), size) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := callback(ctx, items[bounds[0]:bounds[1]], chunkIndex); err != nil {
			return fmt.Errorf("chunk %d failed: %w", chunkIndex, err)
		}
	}
	return nil
}

// ChunkBounds returns [start, end) pairs covering total items in chunks of size.
func ChunkBounds(total, size int) [][2]int {
	if total <= 0 || size <= 0 {
		return nil
	}

	count := total / size
	if total%size > 0 {
		count++
	}

	bounds := make([][2]int, count)
	for i := range count {
		start := i * size
		bounds[i] = [2]int{start, min(start+size, total)}
	}
	return bounds
}
