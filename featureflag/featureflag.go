package featureflag

// FeatureFlag is a lookup map of the features switched off or on for a
// running index server.
type FeatureFlag map[Flag]struct{}

// New returns feature flags initialized with a list of flag names. Empty
// names are ignored.
func New(flags []string) FeatureFlag {
	featureFlag := make(FeatureFlag, len(flags))
	for _, f := range flags {
		if f == "" {
			continue
		}
		featureFlag[Flag(f)] = struct{}{}
	}
	return featureFlag
}

// IsSet reports whether flag is set.
func (f FeatureFlag) IsSet(flag Flag) bool {
	_, ok := f[flag]
	return ok
}

// IfSet runs do if flag is set.
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if !f.IsSet(flag) {
		return
	}
	do()
}

// IfNotSet runs do if flag is not set.
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if f.IsSet(flag) {
		return
	}
	do()
}
