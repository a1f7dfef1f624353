package ringbuf

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewClampsDegenerateSizes(t *testing.T) {
	b := New(0, 0)
	assert.Equal(t, 1, b.ChunkCount())
	assert.Equal(t, DefaultChunkSize, b.ChunkSize())
}

func TestEmptyBufferHasNothingToRead(t *testing.T) {
	b := New(4, 16)
	region, n := b.ReserveRead()
	assert.Nil(t, region)
	assert.Equal(t, 0, n)
	assert.True(t, b.Empty())
	assert.Equal(t, 0, b.FilledChunks())
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	b := New(4, 8)
	region, free := b.ReserveWrite()
	require.Equal(t, 8, free)
	copy(region, []byte("hello!!!"))
	b.Commit(8)

	assert.Equal(t, 1, b.FilledChunks())

	readRegion, readable := b.ReserveRead()
	require.Equal(t, 8, readable)
	assert.Equal(t, []byte("hello!!!"), readRegion)
	b.Consume(8)

	assert.True(t, b.Empty())
}

func TestFullBufferRejectsWrites(t *testing.T) {
	b := New(2, 4)
	for i := 0; i < 2; i++ {
		region, free := b.ReserveWrite()
		require.Equal(t, 4, free)
		b.Commit(len(region))
	}
	assert.True(t, b.Full())
	region, free := b.ReserveWrite()
	assert.Nil(t, region)
	assert.Equal(t, 0, free)
}

func TestPartialChunkIsReadableAsWritten(t *testing.T) {
	b := New(2, 8)
	region, _ := b.ReserveWrite()
	copy(region, []byte("abc"))
	b.Commit(3)

	_, readable := b.ReserveRead()
	assert.Equal(t, 3, readable)
}

func TestResetDiscardsContents(t *testing.T) {
	b := New(2, 4)
	region, _ := b.ReserveWrite()
	b.Commit(len(region))
	require.False(t, b.Empty())

	b.Reset()
	assert.True(t, b.Empty())
	assert.False(t, b.Full())
	assert.Equal(t, 0, b.FilledChunks())
}

func TestCommitPastReservedRegionPanics(t *testing.T) {
	b := New(2, 4)
	assert.Panics(t, func() {
		b.Commit(5)
	})
}

func TestConsumePastReservedRegionPanics(t *testing.T) {
	b := New(2, 4)
	region, _ := b.ReserveWrite()
	b.Commit(len(region))
	assert.Panics(t, func() {
		b.Consume(5)
	})
}

// TestBytesInEqualsBytesOut is the core property: whatever sequence of bytes
// is pushed through ReserveWrite/Commit comes back out, in order, through
// ReserveRead/Consume, regardless of how the writes and reads are chunked.
func TestBytesInEqualsBytesOut(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		chunkCount := rapid.IntRange(1, 8).Draw(rt, "chunkCount")
		chunkSize := rapid.IntRange(1, 32).Draw(rt, "chunkSize")
		b := New(chunkCount, chunkSize)

		numWrites := rapid.IntRange(0, 12).Draw(rt, "numWrites")
		writeChunks := make([][]byte, numWrites)
		for i := range writeChunks {
			writeChunks[i] = rapid.SliceOf(rapid.Byte()).Draw(rt, "chunk")
		}

		var produced, consumed bytes.Buffer
		rng := rand.New(rand.NewSource(1))

		for _, chunk := range writeChunks {
			off := 0
			for off < len(chunk) {
				region, free := b.ReserveWrite()
				if free == 0 {
					drainAll(b, &consumed)
					continue
				}
				n := len(chunk) - off
				if n > free {
					n = free
				}
				copy(region, chunk[off:off+n])
				b.Commit(n)
				produced.Write(chunk[off : off+n])
				off += n

				drainSome(b, &consumed, rng)
			}
		}

		for !b.Empty() {
			region, readable := b.ReserveRead()
			if readable == 0 {
				break
			}
			consumed.Write(region)
			b.Consume(readable)
		}

		assert.Equal(rt, produced.Bytes(), consumed.Bytes())
	})
}

// drainSome opportunistically consumes a random prefix of what's currently
// readable, interleaving reads with writes the way a live producer/consumer
// pair would.
func drainSome(b *Buffer, consumed *bytes.Buffer, rng *rand.Rand) {
	region, readable := b.ReserveRead()
	if readable == 0 {
		return
	}
	n := rng.Intn(readable + 1)
	if n == 0 {
		return
	}
	consumed.Write(region[:n])
	b.Consume(n)
}

// drainAll consumes every currently readable chunk, used to force progress
// when the producer finds the buffer full.
func drainAll(b *Buffer, consumed *bytes.Buffer) {
	for !b.Empty() {
		region, readable := b.ReserveRead()
		if readable == 0 {
			return
		}
		consumed.Write(region)
		b.Consume(readable)
	}
}
