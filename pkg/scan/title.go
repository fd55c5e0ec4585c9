package scan

import (
	"path/filepath"
	"strconv"

	"github.com/MunifTanjim/go-ptt"
)

// Title contains metadata parsed from a video filename, used for display
// in listings. Zero values mean the field was not present in the name.
type Title struct {
	Title      string `json:"title"`
	Year       int    `json:"year,omitempty"`
	Season     int    `json:"season,omitempty"`
	Episode    int    `json:"episode,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

// ParseFilename parses a video filename (release-style or plain) into
// display metadata using go-ptt. The extension is stripped first.
func ParseFilename(name string) *Title {
	base := filepath.Base(name)
	base = base[:len(base)-len(filepath.Ext(base))]

	info := ptt.Parse(base)

	parsed := &Title{
		Title:      info.Title,
		Resolution: info.Resolution,
	}
	if info.Year != "" {
		if year, err := strconv.Atoi(info.Year); err == nil {
			parsed.Year = year
		}
	}
	if len(info.Seasons) > 0 {
		parsed.Season = info.Seasons[0]
	}
	if len(info.Episodes) > 0 {
		parsed.Episode = info.Episodes[0]
	}
	return parsed
}
