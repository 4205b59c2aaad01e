package model

import (
	"net/url"
	"regexp"
	"strings"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// VideoCandidate is a video already attached to some stall, offered as a
// possible match for a stall that has none.
type VideoCandidate struct {
	VideoID      string  `json:"videoId"`
	VideoURL     string  `json:"videoUrl"`
	YoutubeTitle string  `json:"youtubeTitle"`
	Cuisine      string  `json:"cuisine"`
	Country      Country `json:"country"`
	Episode      string  `json:"episode"`
}

// IsVideoID reports whether s has the shape of a YouTube video id.
func IsVideoID(s string) bool {
	return videoIDRe.MatchString(s)
}

// ExtractVideoID pulls the 11-character id out of a watch, short-link, embed,
// shorts or live URL, or accepts a bare id. Returns "" when none is found.
func ExtractVideoID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if IsVideoID(raw) {
		return raw
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var candidate string
	switch host {
	case "youtu.be":
		candidate = firstSegment(u.Path)
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			candidate = v
			break
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) >= 2 {
			switch parts[0] {
			case "embed", "shorts", "live", "v":
				candidate = parts[1]
			}
		}
	}
	if IsVideoID(candidate) {
		return candidate
	}
	return ""
}

// WatchURL builds the canonical watch URL for a video id.
func WatchURL(id string) string {
	if id == "" {
		return ""
	}
	return watchURLPrefix + id
}

func firstSegment(p string) string {
	p = strings.Trim(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}
