package upgrade

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Source is the lenient view of a ReleaseClient used by the coordinator:
// every failure is logged and reported as "no release".
type Source struct {
	client  *ReleaseClient
	timeout time.Duration
}

// NewSource wraps client. A positive timeout bounds each query.
func NewSource(client *ReleaseClient, timeout time.Duration) *Source {
	return &Source{client: client, timeout: timeout}
}

// Latest returns the latest release, or nil when it cannot be determined.
func (s *Source) Latest(ctx context.Context) *Release {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	release, err := s.client.FetchLatestRelease(ctx)
	if err != nil {
		log.WithContext(ctx).Warnf("failed to query latest release of %s/%s: %v", s.client.Owner, s.client.Repo, err)
		return nil
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"release_id": release.ID,
		"tag":        release.TagName,
	}).Debug("latest release fetched")
	return release
}
