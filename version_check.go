package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/lumenlabs/claplight/internal/types"
	"github.com/lumenlabs/claplight/internal/util"
)

// Build information, injected at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const (
	githubRepo          = "lumenlabs/claplight"
	releaseCheckEvery   = 24 * time.Hour
	releaseCheckDelay   = 30 * time.Second // don't block startup on the first check
	releaseCheckTimeout = 30 * time.Second
	releaseMaxAttempts  = 3
	releaseRetryDelay   = time.Minute
)

// VersionChecker polls GitHub for the latest release tag so the status
// API can report whether an update is available. Safe for concurrent use.
type VersionChecker struct {
	mu     sync.RWMutex
	latest string
	etag   string
	stopCh chan struct{}
}

// NewVersionChecker starts the background release poll.
func NewVersionChecker() *VersionChecker {
	vc := &VersionChecker{
		stopCh: make(chan struct{}),
	}
	go vc.loop()
	return vc
}

// Stop terminates the background poll.
func (vc *VersionChecker) Stop() {
	close(vc.stopCh)
}

func (vc *VersionChecker) loop() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in version checker", "panic", r)
		}
	}()

	select {
	case <-time.After(releaseCheckDelay):
		vc.refresh()
	case <-vc.stopCh:
		return
	}

	ticker := time.NewTicker(releaseCheckEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			vc.refresh()
		case <-vc.stopCh:
			return
		}
	}
}

// refresh runs one check cycle, retrying transient failures.
func (vc *VersionChecker) refresh() {
	for attempt := range releaseMaxAttempts {
		if vc.fetchLatest() {
			return
		}
		if attempt < releaseMaxAttempts-1 {
			select {
			case <-time.After(releaseRetryDelay):
			case <-vc.stopCh:
				return
			}
		}
	}
}

type releaseInfo struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// fetchLatest queries the GitHub releases API. It returns false only for
// failures worth retrying; rate limits retry, 404 (no releases yet) does not.
func (vc *VersionChecker) fetchLatest() bool {
	ctx, cancel := context.WithTimeoutCause(
		context.Background(),
		releaseCheckTimeout,
		errors.New("github API request timeout"),
	)
	defer cancel()

	url := "https://api.github.com/repos/" + githubRepo + "/releases/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return false
	}

	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "claplight/"+Version)

	vc.mu.RLock()
	etag := vc.etag
	vc.mu.RUnlock()
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return true
	case resp.StatusCode == http.StatusNotFound:
		return true
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return false
	case resp.StatusCode >= 500:
		return false
	case resp.StatusCode != http.StatusOK:
		return true
	}

	var release releaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return false
	}

	// Drafts and prereleases are not offered as updates.
	if release.Draft || release.Prerelease {
		return true
	}
	if release.TagName == "" {
		return false
	}

	vc.mu.Lock()
	vc.latest = normalizeVersion(release.TagName)
	if newEtag := resp.Header.Get("ETag"); newEtag != "" {
		vc.etag = newEtag
	}
	vc.mu.Unlock()

	return true
}

// Info returns the current version info for the status API.
func (vc *VersionChecker) Info() types.VersionInfo {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	current := normalizeVersion(Version)
	info := types.VersionInfo{
		Current:   current,
		Latest:    vc.latest,
		Commit:    Commit,
		BuildTime: util.FormatHumanTime(BuildTime),
	}

	// Dev builds never report an available update.
	if vc.latest != "" && current != "dev" && current != "unknown" {
		info.UpdateAvail = isNewerVersion(vc.latest, current)
	}

	return info
}

// normalizeVersion strips whitespace and the leading "v" from a tag.
func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// isNewerVersion reports whether latest is a higher semver than current.
func isNewerVersion(latest, current string) bool {
	return semver.Compare(withVPrefix(latest), withVPrefix(current)) > 0
}

// withVPrefix puts a version string into the canonical "vX.Y.Z" form
// that golang.org/x/mod/semver expects.
func withVPrefix(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
