package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequentialIDGeneratorNew(t *testing.T) {
	t.Run("returns a new id", func(t *testing.T) {
		var idGen SequentialIDGenerator

		for i := 1; i <= 5; i++ {
			id := idGen.New()
			require.Equal(t, uint32(i), id)
		}
	})

	t.Run("returns reusable ids last released first", func(t *testing.T) {
		var idGen SequentialIDGenerator

		for i := 1; i <= 5; i++ {
			idGen.New()
		}

		idGen.Reuse(2)
		idGen.Reuse(4)
		require.Equal(t, uint32(4), idGen.New())
		require.Equal(t, uint32(2), idGen.New())
		require.Equal(t, uint32(6), idGen.New())
	})
}

func TestSequentialIDGeneratorReset(t *testing.T) {
	var idGen SequentialIDGenerator
	idGen.New()
	idGen.New()
	idGen.Reuse(1)

	idGen.Reset()
	require.Equal(t, uint32(1), idGen.New())
	require.Equal(t, uint32(2), idGen.New())
}
