package download

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	driveFilePath = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	driveIDParam  = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
)

// driveDownloadURL rewrites Google Drive share links to their direct
// download form. Other URLs are returned unchanged.
func driveDownloadURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.EqualFold(u.Hostname(), "drive.google.com") {
		return rawURL
	}
	if u.Path == "/uc" {
		return rawURL
	}

	// https://drive.google.com/file/d/{ID}/view
	if m := driveFilePath.FindStringSubmatch(u.Path); len(m) > 1 {
		return directDriveURL(m[1])
	}
	// https://drive.google.com/open?id={ID}
	if m := driveIDParam.FindStringSubmatch("?" + u.RawQuery); len(m) > 1 {
		return directDriveURL(m[1])
	}
	return rawURL
}

func directDriveURL(id string) string {
	return fmt.Sprintf("https://drive.google.com/uc?export=download&id=%s", id)
}
