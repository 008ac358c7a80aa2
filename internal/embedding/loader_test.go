package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longtime/assistant/internal/log"
)

// fakeProvider answers every Embed call with a fixed vector or error.
type fakeProvider struct {
	vec []float32
	err error
}

func (p *fakeProvider) Embed(context.Context, string) ([]float32, error) {
	return p.vec, p.err
}

func (p *fakeProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = p.vec
	}
	return vecs, nil
}

func waitDone(t *testing.T, l *Loader) {
	t.Helper()
	select {
	case <-l.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("warm-up did not finish")
	}
}

func TestLoaderNotReadyBeforeStart(t *testing.T) {
	t.Parallel()

	l := NewLoader(&fakeProvider{vec: []float32{1}}, time.Second, log.NewNop())
	assert.False(t, l.Ready())

	_, err := l.Embed(context.Background(), "question")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestLoaderBecomesReady(t *testing.T) {
	t.Parallel()

	l := NewLoader(&fakeProvider{vec: []float32{1, 2}}, time.Second, log.NewNop())
	l.Start()
	waitDone(t, l)

	assert.True(t, l.Ready())

	vec, err := l.Embed(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)

	vecs, err := l.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
}

func TestLoaderFailureIsPermanent(t *testing.T) {
	t.Parallel()

	l := NewLoader(&fakeProvider{err: errors.New("connection refused")}, time.Second, log.NewNop())
	l.Start()
	waitDone(t, l)

	assert.False(t, l.Ready())

	_, err := l.Embed(context.Background(), "question")
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = l.EmbedBatch(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrNotReady)

	// No retry: readiness does not recover on later calls.
	assert.False(t, l.Ready())
}

func TestLoaderStartIdempotent(t *testing.T) {
	t.Parallel()

	l := NewLoader(&fakeProvider{vec: []float32{1}}, time.Second, log.NewNop())
	l.Start()
	l.Start()
	l.Start()
	waitDone(t, l)
	assert.True(t, l.Ready())
}
