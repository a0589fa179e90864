package embedding_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinri/neural-forge/pkg/embedding"
)

func TestMock_Deterministic(t *testing.T) {
	m := embedding.NewMock()
	ctx := context.Background()

	a, err := m.Embed(ctx, "hello world")
	require.NoError(t, err)
	b, err := m.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, embedding.Dimensions)
}

func TestMock_DistinctInputsDiffer(t *testing.T) {
	m := embedding.NewMock()
	ctx := context.Background()

	a, _ := m.Embed(ctx, "alpha")
	b, _ := m.Embed(ctx, "beta")
	assert.NotEqual(t, a, b)
}

func TestMock_UnitLength(t *testing.T) {
	m := embedding.NewMock()
	v, err := m.Embed(context.Background(), "unit test")
	require.NoError(t, err)

	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-3)
}

func TestDisabled_ReturnsNil(t *testing.T) {
	d := embedding.NewDisabled()
	v, err := d.Embed(context.Background(), "anything")
	require.NoError(t, err)
	assert.Nil(t, v)
}
