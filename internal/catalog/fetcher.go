// Package catalog reads channel metadata from the paginated catalog API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rizkirmdhn/catcast/internal/common/httpclient"
	"github.com/rizkirmdhn/catcast/internal/retry"
	"github.com/rizkirmdhn/catcast/pkg/models"
	"github.com/sirupsen/logrus"
)

// StatusSuccess is the value of the top-level status flag on a good page
const StatusSuccess = 1

// ErrInvalidStatus is returned when the API answers with a status flag other than StatusSuccess
var ErrInvalidStatus = errors.New("catalog: invalid status flag")

// ParseError is returned when a page body cannot be decoded
type ParseError struct {
	Page int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("catalog: parse page %d: %v", e.Page, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StatusError is returned for a non-200 HTTP status
type StatusError struct {
	Page   int
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog: page %d: unexpected status %d", e.Page, e.Status)
}

// Page is the result of fetching one catalog page. Records is empty whenever
// Outcome is not retry.Success.
type Page struct {
	Number   int
	Records  []models.ChannelRecord
	Outcome  retry.Outcome
	Attempts int
	Err      error
}

// envelope is the minimal shape of a catalog response
type envelope struct {
	Status *int `json:"status"`
	Data   *struct {
		List *struct {
			Data []models.ChannelRecord `json:"data"`
		} `json:"list"`
	} `json:"data"`
}

// Fetcher retrieves catalog pages one at a time
type Fetcher struct {
	client  httpclient.Getter
	baseURL string
	policy  retry.Policy
	log     logrus.FieldLogger
}

// NewFetcher creates a Fetcher for the catalog endpoint at baseURL
func NewFetcher(client httpclient.Getter, baseURL string, policy retry.Policy, log logrus.FieldLogger) *Fetcher {
	return &Fetcher{
		client:  client,
		baseURL: baseURL,
		policy:  policy,
		log:     log,
	}
}

// PageURL builds the catalog URL for page
func (f *Fetcher) PageURL(page int) (string, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid catalog url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchPage returns the channel records of page. Failures never propagate:
// after the attempts are spent, or on an invalid status flag, the page is empty.
func (f *Fetcher) FetchPage(ctx context.Context, page int) Page {
	result := Page{Number: page}

	pageURL, err := f.PageURL(page)
	if err != nil {
		f.log.WithFields(logrus.Fields{
			"page": page,
		}).WithError(err).Error("Cannot build catalog URL")
		result.Outcome, result.Err = retry.Permanent, err
		return result
	}

	res := retry.Do(ctx, f.policy, func(ctx context.Context, attempt int) ([]models.ChannelRecord, retry.Outcome, error) {
		records, outcome, err := f.attempt(ctx, pageURL, page)
		if err != nil {
			entry := f.log.WithFields(logrus.Fields{
				"page":    page,
				"attempt": attempt,
				"outcome": outcome.String(),
			}).WithError(err)
			if outcome == retry.Permanent {
				entry.Warn("Catalog page rejected by API")
			} else {
				entry.Warn("Catalog page fetch failed")
			}
		}
		return records, outcome, err
	})

	result.Outcome = res.Outcome
	result.Attempts = res.Attempts
	result.Err = res.Err
	if res.OK() {
		result.Records = res.Value
	}

	if res.Outcome == retry.Transient {
		f.log.WithFields(logrus.Fields{
			"page":     page,
			"attempts": res.Attempts,
		}).Error("Giving up on catalog page")
	}

	return result
}

func (f *Fetcher) attempt(ctx context.Context, pageURL string, page int) ([]models.ChannelRecord, retry.Outcome, error) {
	resp, err := f.client.Get(ctx, pageURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, retry.Transient, err
	}
	if !resp.OK() {
		return nil, retry.Transient, &StatusError{Page: page, Status: resp.Status}
	}

	records, err := Decode(resp.Body, page)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			return nil, retry.Permanent, err
		}
		return nil, retry.Transient, err
	}
	return records, retry.Success, nil
}

// Decode parses a catalog response body. It returns ErrInvalidStatus (wrapped)
// when the status flag is not StatusSuccess and a *ParseError when the body is
// malformed or the record list is missing.
func Decode(body []byte, page int) ([]models.ChannelRecord, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ParseError{Page: page, Err: err}
	}
	if env.Status == nil {
		return nil, &ParseError{Page: page, Err: errors.New("missing status flag")}
	}
	if *env.Status != StatusSuccess {
		return nil, fmt.Errorf("%w: page %d has status %d", ErrInvalidStatus, page, *env.Status)
	}
	if env.Data == nil || env.Data.List == nil {
		return nil, &ParseError{Page: page, Err: errors.New("missing data.list")}
	}

	records := env.Data.List.Data
	if records == nil {
		records = []models.ChannelRecord{}
	}
	return records, nil
}
