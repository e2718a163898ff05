package postprocess

import (
	"compress/zlib"
	"fmt"
	"strings"
)

// Quality selects how hard content streams are recompressed.
type Quality string

// Supported quality settings.
const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// ParseQuality maps a config string onto a Quality. Empty means medium.
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case "":
		return QualityMedium, nil
	case QualityLow, QualityMedium, QualityHigh:
		return q, nil
	default:
		return "", fmt.Errorf("unknown pdf quality %q (want low, medium or high)", s)
	}
}

// Level is the zlib level used for the quality. Low quality means the
// smallest output, so it gets the strongest compression.
func (q Quality) Level() int {
	switch q {
	case QualityLow:
		return zlib.BestCompression
	case QualityHigh:
		return 4
	default:
		return 6
	}
}
