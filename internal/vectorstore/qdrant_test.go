package vectorstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/errs"
)

func TestPointID_Deterministic(t *testing.T) {
	a := PointID("dir1/a.md-0")
	assert.Equal(t, a, PointID("dir1/a.md-0"))
	assert.NotEqual(t, a, PointID("dir1/a.md-1"))
	assert.Len(t, a, 36)
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"unavailable", status.Error(codes.Unavailable, "down"), true},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), true},
		{"aborted", status.Error(codes.Aborted, "conflict"), true},
		{"exhausted", status.Error(codes.ResourceExhausted, "busy"), true},
		{"invalid", status.Error(codes.InvalidArgument, "bad"), false},
		{"not found", status.Error(codes.NotFound, "gone"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransientError(tt.err))
		})
	}
}

func TestRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), 3, time.Millisecond, func(context.Context) error {
			calls++
			if calls < 3 {
				return status.Error(codes.Unavailable, "down")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), 2, time.Millisecond, func(context.Context) error {
			calls++
			return status.Error(codes.Unavailable, "down")
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), 5, time.Millisecond, func(context.Context) error {
			calls++
			return status.Error(codes.InvalidArgument, "bad")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := retry(ctx, 5, time.Hour, func(context.Context) error {
			calls++
			cancel()
			return status.Error(codes.Unavailable, "down")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestPayloadRoundTrip(t *testing.T) {
	s := &QdrantStore{logger: zap.NewNop()}
	doc := document.New("dir1/a.md", 4, "hello", time.Unix(1700000000, 0), time.Unix(1700000100, 0))

	payload := encodePayload(doc)
	assert.Equal(t, "dir1/a.md", payload[document.KeyFilePath].GetStringValue())
	assert.Equal(t, int64(4), payload[document.KeyChunkIndex].GetIntegerValue())
	assert.Equal(t, int64(1700000000), payload[document.KeyFileCreatedAt].GetIntegerValue())

	got := s.decodePayload(payload)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, doc.Metadata.File.Path, got.Metadata.File.Path)
	assert.Equal(t, doc.Metadata.Chunk.Index, got.Metadata.Chunk.Index)
	assert.Equal(t, doc.Metadata.File.UpdatedAt.Unix(), got.Metadata.File.UpdatedAt.Unix())
}

func TestDecodePayload_DoubleIndex(t *testing.T) {
	s := &QdrantStore{logger: zap.NewNop()}
	payload := map[string]*qdrant.Value{
		payloadID:                 qdrant.NewValueString("a.md-2"),
		payloadContent:            qdrant.NewValueString("text"),
		document.KeyFilePath:      qdrant.NewValueString("a.md"),
		document.KeyFileCreatedAt: qdrant.NewValueDouble(10),
		document.KeyFileUpdatedAt: qdrant.NewValueDouble(20),
		document.KeyChunkIndex:    qdrant.NewValueDouble(2),
	}

	got := s.decodePayload(payload)
	assert.Equal(t, 2, got.Metadata.Chunk.Index)
	assert.Equal(t, int64(20), got.Metadata.File.UpdatedAt.Unix())
}

func TestQdrantStore_WrapNotFound(t *testing.T) {
	s := &QdrantStore{logger: zap.NewNop()}

	err := s.wrap("docs", "querying", status.Error(codes.NotFound, "Collection `docs` doesn't exist"))
	assert.ErrorIs(t, err, ErrCollectionNotFound)
	assert.ErrorIs(t, err, errs.ErrVectorStore)

	err = s.wrap("docs", "querying", status.Error(codes.Internal, "oops"))
	assert.NotErrorIs(t, err, ErrCollectionNotFound)
	assert.ErrorIs(t, err, errs.ErrVectorStore)
}

func TestQdrantConfig(t *testing.T) {
	cfg := QdrantConfig{Dimension: 768}
	cfg.ApplyDefaults()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Dimension = 0
	assert.ErrorIs(t, bad.Validate(), errs.ErrInvalidConfiguration)

	bad = cfg
	bad.Port = 70000
	assert.ErrorIs(t, bad.Validate(), errs.ErrInvalidConfiguration)
}

func TestNewQdrantStore_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := NewQdrantStore(ctx, QdrantConfig{Host: "127.0.0.1", Port: 1, Dimension: 3}, nil)
	assert.ErrorIs(t, err, errs.ErrVectorStore)
}
