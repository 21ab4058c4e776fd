// Package stream resolves a channel's live manifest URL from its detail page.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rizkirmdhn/catcast/internal/common/httpclient"
	"github.com/rizkirmdhn/catcast/internal/retry"
	"github.com/rizkirmdhn/catcast/pkg/models"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is reported when a detail page was served but carries no stream
var ErrNotFound = errors.New("stream: no manifest on channel page")

// StatusError is returned for a non-200 detail page
type StatusError struct {
	Shortname string
	Status    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stream: channel %s: unexpected status %d", e.Shortname, e.Status)
}

// Result is the outcome of resolving one channel. Stream is only meaningful when Found.
type Result struct {
	Stream   models.ResolvedStream
	Found    bool
	Outcome  retry.Outcome
	Attempts int
	Err      error
}

// Resolver turns a shortname into a manifest URL
type Resolver struct {
	client  httpclient.Getter
	siteURL string
	policy  retry.Policy
	log     logrus.FieldLogger
}

// NewResolver creates a Resolver reading detail pages under siteURL
func NewResolver(client httpclient.Getter, siteURL string, policy retry.Policy, log logrus.FieldLogger) *Resolver {
	return &Resolver{
		client:  client,
		siteURL: strings.TrimSuffix(siteURL, "/"),
		policy:  policy,
		log:     log,
	}
}

// ChannelURL builds the detail page address for shortname
func (r *Resolver) ChannelURL(shortname string) string {
	return r.siteURL + "/channel/" + url.PathEscape(strings.TrimSpace(shortname))
}

// Resolve fetches the detail page of shortname and extracts its stream.
// Transport faults and non-200 pages are retried after the backoff; a page
// without a stream is retried immediately. Once attempts run out the result
// is not found, never an error for the caller to handle.
func (r *Resolver) Resolve(ctx context.Context, shortname string) Result {
	channelURL := r.ChannelURL(shortname)

	res := retry.Do(ctx, r.policy, func(ctx context.Context, attempt int) (string, retry.Outcome, error) {
		resp, err := r.client.Get(ctx, channelURL, nil)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"shortname": shortname,
				"attempt":   attempt,
			}).WithError(err).Warn("Channel page fetch failed")
			return "", retry.Transient, err
		}
		if !resp.OK() {
			err := &StatusError{Shortname: shortname, Status: resp.Status}
			r.log.WithFields(logrus.Fields{
				"shortname": shortname,
				"attempt":   attempt,
				"status":    resp.Status,
			}).Warn("Channel page returned unexpected status")
			return "", retry.Transient, err
		}

		manifest, ok := Extract(resp.Body)
		if !ok {
			r.log.WithFields(logrus.Fields{
				"shortname": shortname,
				"attempt":   attempt,
			}).Debug("No stream on channel page")
			return "", retry.Absent, ErrNotFound
		}
		return manifest, retry.Success, nil
	})

	result := Result{
		Outcome:  res.Outcome,
		Attempts: res.Attempts,
		Err:      res.Err,
	}
	if res.OK() {
		result.Found = true
		result.Stream = models.ResolvedStream{Shortname: shortname, URL: res.Value}
	}
	return result
}
