package go2rtc

import (
	"context"
	"fmt"

	"golang.org/x/mod/semver"
)

// Supported server version window. go2rtc 2.x is expected to change the
// API surface, so it is rejected until verified.
const (
	minSupportedVersion     = "1.9.4"
	firstUnsupportedVersion = "2.0.0"
)

// ValidateServerVersion fetches the server's version and fails with a
// KindVersion error when it falls outside the supported window.
func (c *Client) ValidateServerVersion(ctx context.Context) (string, error) {
	info, err := c.Application.Info(ctx)
	if err != nil {
		return "", err
	}
	if !versionSupported(info.Version) {
		return "", &Error{
			Kind: KindVersion,
			Err: fmt.Errorf("server version %q not >= %s and < %s",
				info.Version, minSupportedVersion, firstUnsupportedVersion),
		}
	}
	return info.Version, nil
}

func versionSupported(version string) bool {
	v := "v" + version
	if !semver.IsValid(v) {
		return false
	}
	return semver.Compare(v, "v"+minSupportedVersion) >= 0 &&
		semver.Compare(v, "v"+firstUnsupportedVersion) < 0
}
