package datastore

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	filePrefix  = "sleep_log_"
	fileExt     = ".json"
	stampLayout = "20060102_150405"
)

var fileNamePattern = regexp.MustCompile(`^sleep_log_(\d{8}_\d{6})_to_(\d{8}_\d{6})(?:-(\d+))?\.json$`)

// FileName returns the record file name for a session, with a -N suffix for
// n > 0.
func FileName(start, end time.Time, n int) string {
	base := fmt.Sprintf("%s%s_to_%s", filePrefix, start.Format(stampLayout), end.Format(stampLayout))
	if n > 0 {
		base += "-" + strconv.Itoa(n)
	}
	return base + fileExt
}

// ParsedName is a decoded record file name. Timestamps are in loc.
type ParsedName struct {
	Start  time.Time
	End    time.Time
	Suffix int
}

// ParseFileName decodes a record file name. ok is false for anything that
// is not a record file.
func ParseFileName(name string, loc *time.Location) (ParsedName, bool) {
	m := fileNamePattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return ParsedName{}, false
	}
	start, err := time.ParseInLocation(stampLayout, m[1], loc)
	if err != nil {
		return ParsedName{}, false
	}
	end, err := time.ParseInLocation(stampLayout, m[2], loc)
	if err != nil {
		return ParsedName{}, false
	}
	p := ParsedName{Start: start, End: end}
	if m[3] != "" {
		p.Suffix, _ = strconv.Atoi(m[3])
	}
	return p, true
}

// SessionID is the record file name without directory or extension.
func SessionID(location string) string {
	return strings.TrimSuffix(filepath.Base(location), fileExt)
}
