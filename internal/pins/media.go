package pins

import (
	"regexp"
	"strings"
)

var youTubeRE = regexp.MustCompile(`^.*(youtu.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)

// YouTubeID extracts the 11-character video id from a YouTube link.
func YouTubeID(link string) string {
	m := youTubeRE.FindStringSubmatch(link)
	if m == nil || len(m[2]) != 11 {
		return ""
	}
	return m[2]
}

// ThumbnailURL returns the preview image for a video link, or "" when the
// link has no recognizable id.
func ThumbnailURL(link string, hiRes bool) string {
	id := YouTubeID(link)
	if id == "" {
		return ""
	}
	size := "mqdefault"
	if hiRes {
		size = "hqdefault"
	}
	return "https://img.youtube.com/vi/" + id + "/" + size + ".jpg"
}

// FlagURL returns the flag image for a two-letter code.
func FlagURL(code string) string {
	if code == "" {
		return ""
	}
	return "https://flagcdn.com/w160/" + strings.ToLower(code) + ".png"
}
