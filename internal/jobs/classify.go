package jobs

import "scanhub/pkg/types"

// Classify resolves the effective profile for a target. It is pure and
// deterministic: the sentinel default profile becomes web when the target is
// a URL or a non-numeric hostname, and stays the network default when the
// target is a literal IP address. Explicit profiles pass through unchanged
// (ParseProfile has already coerced unknown values to the default).
func Classify(target string, requested Profile) Profile {
	if requested != ProfileDefault {
		return requested
	}
	if types.IsWebTarget(target) {
		return ProfileWeb
	}
	return ProfileDefault
}
