package release

import "strings"

// TagCandidates returns the tag names a version may have been released
// under: exact, "v"-prefixed, and "v"-prefix-stripped, in that order of
// preference, with duplicates collapsed. First match wins at lookup time.
func TagCandidates(version string) []string {
	version = strings.TrimSpace(version)
	if version == "" {
		return nil
	}

	candidates := []string{version}
	candidates = appendUnique(candidates, "v"+version)
	if stripped := strings.TrimPrefix(version, "v"); stripped != "" {
		candidates = appendUnique(candidates, stripped)
	}
	return candidates
}
