// Package domain holds the core types of the settlement pipeline. Types here
// are plain data: behavior lives in the services that produce and consume them.
package domain

import "strings"

// Platform identifies a supported social platform.
type Platform string

const (
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

// AllPlatforms lists every platform the pipeline tracks.
var AllPlatforms = []Platform{PlatformTikTok, PlatformInstagram}

// Valid reports whether the platform is one the pipeline supports.
func (p Platform) Valid() bool {
	switch p {
	case PlatformTikTok, PlatformInstagram:
		return true
	}
	return false
}

// ParsePlatform normalizes a raw platform string. The second return value is
// false for unsupported platforms.
func ParsePlatform(raw string) (Platform, bool) {
	p := Platform(strings.ToLower(strings.TrimSpace(raw)))
	return p, p.Valid()
}
