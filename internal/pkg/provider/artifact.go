package provider

import (
	"strings"

	"github.com/tidwall/gjson"
)

// artifactPaths is the ordered list of extraction rules for the output video
// URL. The provider's output shape varies by endpoint version, so the rules
// are evaluated in priority order and the first non-empty hit wins.
var artifactPaths = []string{
	"video.url",
	"video_url",
	"output.video.url",
	"output.video_url",
	"videos.0.url",
	"output.videos.0.url",
	"output.url",
	"data.video.url",
	"url",
}

// errorPaths locates a human-readable failure detail in terminal error
// responses, again across endpoint versions.
var errorPaths = []string{
	"error.message",
	"error",
	"detail",
	"output.error",
	"message",
}

// ExtractArtifactURL searches the raw provider output for a usable video
// URL. Returns ok=false when no rule matches; a terminal success without an
// artifact must be treated as a failure by the caller.
func ExtractArtifactURL(raw []byte) (string, bool) {
	for _, path := range artifactPaths {
		if v := gjson.GetBytes(raw, path); v.Type == gjson.String {
			if url := strings.TrimSpace(v.String()); url != "" {
				return url, true
			}
		}
	}
	return "", false
}

// ExtractErrorDetail pulls a failure description out of the raw provider
// response, falling back to the given default.
func ExtractErrorDetail(raw []byte, fallback string) string {
	for _, path := range errorPaths {
		if v := gjson.GetBytes(raw, path); v.Type == gjson.String {
			if msg := strings.TrimSpace(v.String()); msg != "" {
				return msg
			}
		}
	}
	return fallback
}
