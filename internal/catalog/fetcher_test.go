package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rizkirmdhn/catcast/internal/common/httpclient"
	"github.com/rizkirmdhn/catcast/internal/retry"
	"github.com/rizkirmdhn/catcast/pkg/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodPage = `{
	"status": 1,
	"data": {"list": {"data": [
		{"id": 101, "name": "Alpha TV", "shortname": "alpha", "logo": "https://img/a.png"},
		{"id": "102", "name": "Beta", "shortname": "beta", "logo": null}
	]}}
}`

type reply struct {
	resp *httpclient.Response
	err  error
}

// scriptedGetter answers with the scripted replies in order and records the URLs asked for
type scriptedGetter struct {
	replies []reply
	urls    []string
}

func (g *scriptedGetter) Get(_ context.Context, url string, _ map[string]string) (*httpclient.Response, error) {
	g.urls = append(g.urls, url)
	if len(g.urls) > len(g.replies) {
		return nil, &httpclient.TransportError{URL: url, Err: errors.New("no more replies")}
	}
	r := g.replies[len(g.urls)-1]
	return r.resp, r.err
}

func ok(body string) reply {
	return reply{resp: &httpclient.Response{Status: http.StatusOK, Body: []byte(body)}}
}

func fail() reply {
	return reply{err: &httpclient.TransportError{URL: "x", Err: errors.New("connection reset")}}
}

type sleeps struct{ n int }

func (s *sleeps) Sleep(context.Context, time.Duration) error {
	s.n++
	return nil
}

func newTestFetcher(g httpclient.Getter, s *sleeps) *Fetcher {
	log, _ := test.NewNullLogger()
	policy := retry.Policy{MaxAttempts: 3, Backoff: 5 * time.Second, Sleep: s.Sleep}
	return NewFetcher(g, "https://api.catcast.tv/api/channels", policy, log)
}

func TestFetchPageSuccess(t *testing.T) {
	g := &scriptedGetter{replies: []reply{ok(goodPage)}}
	s := &sleeps{}
	page := newTestFetcher(g, s).FetchPage(context.Background(), 4)

	require.Equal(t, retry.Success, page.Outcome)
	assert.Equal(t, 1, page.Attempts)
	assert.Equal(t, 4, page.Number)
	assert.Equal(t, []string{"https://api.catcast.tv/api/channels?page=4"}, g.urls)
	assert.Equal(t, []models.ChannelRecord{
		{ID: "101", Name: "Alpha TV", Shortname: "alpha", Logo: "https://img/a.png"},
		{ID: "102", Name: "Beta", Shortname: "beta"},
	}, page.Records)
	assert.Zero(t, s.n)
}

func TestFetchPageRetriesThreeTimesOnTransportFailure(t *testing.T) {
	g := &scriptedGetter{replies: []reply{fail(), fail(), fail(), ok(goodPage)}}
	s := &sleeps{}
	page := newTestFetcher(g, s).FetchPage(context.Background(), 1)

	assert.Len(t, g.urls, 3)
	assert.Equal(t, 3, page.Attempts)
	assert.Equal(t, retry.Transient, page.Outcome)
	assert.Empty(t, page.Records)
	assert.Equal(t, 2, s.n, "backoff between attempts only")

	var te *httpclient.TransportError
	assert.True(t, errors.As(page.Err, &te))
}

func TestFetchPageSucceedsOnSecondAttempt(t *testing.T) {
	g := &scriptedGetter{replies: []reply{fail(), ok(goodPage), ok(goodPage)}}
	s := &sleeps{}
	page := newTestFetcher(g, s).FetchPage(context.Background(), 1)

	assert.Len(t, g.urls, 2, "no third attempt after a success")
	assert.Equal(t, retry.Success, page.Outcome)
	assert.Len(t, page.Records, 2)
	assert.Equal(t, 1, s.n)
}

func TestFetchPageInvalidStatusIsFinal(t *testing.T) {
	g := &scriptedGetter{replies: []reply{ok(`{"status": 0, "data": null}`), ok(goodPage)}}
	s := &sleeps{}
	page := newTestFetcher(g, s).FetchPage(context.Background(), 480)

	assert.Len(t, g.urls, 1)
	assert.Equal(t, retry.Permanent, page.Outcome)
	assert.Empty(t, page.Records)
	assert.ErrorIs(t, page.Err, ErrInvalidStatus)
	assert.Zero(t, s.n)
}

func TestFetchPageRetriesBadStatusAndBadBody(t *testing.T) {
	g := &scriptedGetter{replies: []reply{
		{resp: &httpclient.Response{Status: http.StatusBadGateway}},
		ok(`<html>cloudflare</html>`),
		ok(goodPage),
	}}
	s := &sleeps{}
	page := newTestFetcher(g, s).FetchPage(context.Background(), 2)

	assert.Len(t, g.urls, 3)
	assert.Equal(t, retry.Success, page.Outcome)
	assert.Len(t, page.Records, 2)
	assert.Equal(t, 2, s.n)
}

func TestFetchPageOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("page"))
		assert.Equal(t, "catcast-test", r.Header.Get("User-Agent"))
		w.Write([]byte(goodPage))
	}))
	defer srv.Close()

	log, _ := test.NewNullLogger()
	client := httpclient.New(httpclient.Identity{UserAgent: "catcast-test"}, time.Second)
	f := NewFetcher(client, srv.URL+"/api/channels", retry.Policy{MaxAttempts: 3}, log)

	page := f.FetchPage(context.Background(), 7)
	require.Equal(t, retry.Success, page.Outcome)
	assert.Len(t, page.Records, 2)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantLen   int
		wantParse bool
		wantInval bool
	}{
		{"good", goodPage, 2, false, false},
		{"empty list", `{"status":1,"data":{"list":{"data":[]}}}`, 0, false, false},
		{"null list", `{"status":1,"data":{"list":{"data":null}}}`, 0, false, false},
		{"invalid status", `{"status":-1}`, 0, false, true},
		{"missing status", `{"data":{"list":{"data":[]}}}`, 0, true, false},
		{"missing list", `{"status":1,"data":{}}`, 0, true, false},
		{"not json", `oops`, 0, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := Decode([]byte(tt.body), 1)
			var pe *ParseError
			assert.Equal(t, tt.wantParse, errors.As(err, &pe))
			assert.Equal(t, tt.wantInval, errors.Is(err, ErrInvalidStatus))
			if err == nil {
				assert.Len(t, records, tt.wantLen)
				assert.NotNil(t, records)
			}
		})
	}
}

func TestPageURLKeepsExistingQuery(t *testing.T) {
	log, _ := test.NewNullLogger()
	f := NewFetcher(nil, "https://api.catcast.tv/api/channels?lang=tr", retry.Policy{}, log)

	u, err := f.PageURL(3)
	require.NoError(t, err)
	assert.Equal(t, "https://api.catcast.tv/api/channels?lang=tr&page=3", u)
}
