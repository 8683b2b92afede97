package release

import (
	"context"
	"time"
)

// ReleaseInfo is provider-fetched release metadata before persistence.
type ReleaseInfo struct {
	TagName     string
	Name        string
	Notes       string
	Author      string
	URL         string
	PublishedAt *time.Time
}

// Provider fetches release metadata from an upstream Git provider.
//
// A nil ReleaseInfo with a nil error means the release does not exist yet
// (the normal case for freshly deployed versions); an error means the
// lookup itself failed. Implementations must time out rather than hang:
// the linker treats a slow provider as a miss, never as a stuck batch.
type Provider interface {
	FetchRelease(ctx context.Context, repositoryURL, version string) (*ReleaseInfo, error)
}
