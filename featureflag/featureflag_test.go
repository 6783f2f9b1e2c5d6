package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{string(FlagDisableShapeSearch), ""})

	t.Run("is set", func(t *testing.T) {
		require.True(t, f.IsSet(FlagDisableShapeSearch))
		require.False(t, f.IsSet(FlagDisableRegionDelete))
		require.Len(t, f, 1)
	})

	t.Run("run if enabled", func(t *testing.T) {
		var runShape bool
		f.IfSet(FlagDisableShapeSearch, func() {
			runShape = true
		})
		require.True(t, runShape)

		var runStream bool
		f.IfSet(FlagDisableViewportStream, func() {
			runStream = true
		})
		require.False(t, runStream)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var runShape bool
		f.IfNotSet(FlagDisableShapeSearch, func() {
			runShape = true
		})
		require.False(t, runShape)

		var runStream bool
		f.IfNotSet(FlagDisableViewportStream, func() {
			runStream = true
		})
		require.True(t, runStream)
	})
}
