package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/nulzo/content-gateway/internal/httpclient"
)

// set with -ldflags "-X github.com/nulzo/content-gateway/cmd.AppVersion=v1.2.3"
var (
	AppVersion  = "v0.0.0"
	ReleasesURL = "https://api.github.com/repos/nulzo/content-gateway/releases/latest"
)

type GitHubRelease struct {
	TagName string `json:"tag_name"`
}

// CheckForUpdates returns the latest release tag when it is newer than current.
func CheckForUpdates(ctx context.Context, current, url string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 2 * time.Second}

	var release GitHubRelease
	if err := httpclient.SendRequest(ctx, client, http.MethodGet, url, nil, nil, &release); err != nil {
		return "", false, err
	}

	cur, err := version.NewVersion(current)
	if err != nil {
		return "", false, fmt.Errorf("current version %q: %w", current, err)
	}

	latest, err := version.NewVersion(release.TagName)
	if err != nil {
		return "", false, fmt.Errorf("release tag %q: %w", release.TagName, err)
	}

	return release.TagName, cur.LessThan(latest), nil
}
