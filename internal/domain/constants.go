package domain

import "time"

const (
	PathEmpty           = ""
	PathCurrent         = "."
	PathParent          = ".."
	MIMEOctetStream     = "application/octet-stream"
	ShortLinkPathPrefix = "/short/"
)

const (
	SessionTTL    = 24*time.Hour + 5*time.Minute
	CapabilityTTL = 15 * time.Minute
)

const (
	DefaultPreviewLines    = 15
	DefaultShortCodeLength = 6
)

// DefaultPreviewExtensions lists the text extensions preview accepts when none are configured.
var DefaultPreviewExtensions = []string{".txt", ".md", ".py", ".js", ".html", ".css"}
