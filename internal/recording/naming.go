package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	baseTimestampLayout = "20060102_150405"
	// SensorLogExt is the extension of the gyroscope log.
	SensorLogExt = "jsonl"
)

// BaseName returns {prefix}_{YYYYMMDD_HHMMSS} for t in local time.
func BaseName(prefix string, t time.Time) string {
	return prefix + "_" + t.Format(baseTimestampLayout)
}

// UniqueBase returns a base name under dir for which none of the given
// extensions exist yet. A numeric suffix is added when two sessions start
// within the same second.
func UniqueBase(dir, prefix string, t time.Time, exts ...string) string {
	base := BaseName(prefix, t)
	candidate := base
	for n := 1; ; n++ {
		taken := false
		for _, ext := range exts {
			if _, err := os.Stat(filepath.Join(dir, candidate+"."+ext)); err == nil {
				taken = true
				break
			}
		}
		if !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", base, n)
	}
}
