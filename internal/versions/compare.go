package versions

import "github.com/Masterminds/semver/v3"

// IsNewerVersion reports whether newVersion is strictly greater than oldVersion.
// Both must be valid semver; anything else (such as "dev" builds) never compares newer.
func IsNewerVersion(newVersion, oldVersion string) bool {
	newSemver, errNew := semver.NewVersion(newVersion)
	oldSemver, errOld := semver.NewVersion(oldVersion)
	if errNew != nil || errOld != nil {
		return false
	}
	return newSemver.GreaterThan(oldSemver)
}

// WrittenByNewer reports whether state stamped with recorded came from a newer
// connector than the running one.
func WrittenByNewer(recorded string) bool {
	return IsNewerVersion(recorded, Version)
}
