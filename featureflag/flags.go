package featureflag

type Flag string

const (
	FlagDisableShapeSearch    Flag = "DISABLE_SHAPE_SEARCH"
	FlagDisableViewportStream Flag = "DISABLE_VIEWPORT_STREAM"
	FlagDisableRegionDelete   Flag = "DISABLE_REGION_DELETE"
)
