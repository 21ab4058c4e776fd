package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rizkirmdhn/catcast/internal/common/httpclient"
	"github.com/rizkirmdhn/catcast/internal/retry"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reply struct {
	status int
	body   string
	err    error
}

type scriptedGetter struct {
	replies []reply
	urls    []string
}

func (g *scriptedGetter) Get(_ context.Context, url string, _ map[string]string) (*httpclient.Response, error) {
	g.urls = append(g.urls, url)
	r := g.replies[len(g.urls)-1]
	if r.err != nil {
		return nil, r.err
	}
	return &httpclient.Response{Status: r.status, Body: []byte(r.body)}, nil
}

type sleeps struct{ n int }

func (s *sleeps) Sleep(context.Context, time.Duration) error {
	s.n++
	return nil
}

func newTestResolver(g httpclient.Getter, s *sleeps) (*Resolver, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	policy := retry.Policy{MaxAttempts: 3, Backoff: 5 * time.Second, Sleep: s.Sleep}
	return NewResolver(g, "https://catcast.tv/", policy, log), hook
}

const playerPage = `<video><source src="https://cdn.example/live/ch1.m3u8?token=abc"></video>`

func TestResolveFound(t *testing.T) {
	g := &scriptedGetter{replies: []reply{{status: 200, body: playerPage}}}
	s := &sleeps{}
	r, _ := newTestResolver(g, s)

	res := r.Resolve(context.Background(), "alpha")

	require.True(t, res.Found)
	assert.Equal(t, "https://cdn.example/live/ch1.m3u8?token=abc", res.Stream.URL)
	assert.Equal(t, "alpha", res.Stream.Shortname)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []string{"https://catcast.tv/channel/alpha"}, g.urls)
	assert.Zero(t, s.n)
}

func TestResolveNotFoundAfterThreeAttempts(t *testing.T) {
	empty := reply{status: 200, body: `<html><body>offline</body></html>`}
	g := &scriptedGetter{replies: []reply{empty, empty, empty, {status: 200, body: playerPage}}}
	s := &sleeps{}
	r, _ := newTestResolver(g, s)

	res := r.Resolve(context.Background(), "beta")

	assert.False(t, res.Found)
	assert.Equal(t, retry.Absent, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.Len(t, g.urls, 3)
	assert.ErrorIs(t, res.Err, ErrNotFound)
	assert.Empty(t, res.Stream.URL)
	assert.Zero(t, s.n, "a served page without a stream is not a transport fault")
}

func TestResolveRetriesTransportAndStatus(t *testing.T) {
	g := &scriptedGetter{replies: []reply{
		{err: &httpclient.TransportError{URL: "u", Err: errors.New("timeout")}},
		{status: http.StatusTooManyRequests},
		{status: 200, body: playerPage},
	}}
	s := &sleeps{}
	r, hook := newTestResolver(g, s)

	res := r.Resolve(context.Background(), "gamma")

	require.True(t, res.Found)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 2, s.n)

	var warned []int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			assert.Equal(t, "gamma", e.Data["shortname"])
			warned = append(warned, e.Data["attempt"].(int))
		}
	}
	assert.Equal(t, []int{1, 2}, warned)
}

func TestResolveGivesUpOnFaults(t *testing.T) {
	fault := reply{status: http.StatusInternalServerError}
	g := &scriptedGetter{replies: []reply{fault, fault, fault}}
	s := &sleeps{}
	r, _ := newTestResolver(g, s)

	res := r.Resolve(context.Background(), "delta")

	assert.False(t, res.Found)
	assert.Equal(t, retry.Transient, res.Outcome)
	var se *StatusError
	assert.True(t, errors.As(res.Err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Status)
}

func TestChannelURLEscapesShortname(t *testing.T) {
	r, _ := newTestResolver(nil, &sleeps{})
	assert.Equal(t, "https://catcast.tv/channel/my%20chan", r.ChannelURL(" my chan "))
}

func TestResolveOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channel/alpha" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(playerPage))
	}))
	defer srv.Close()

	log, _ := test.NewNullLogger()
	client := httpclient.New(httpclient.Identity{UserAgent: "t"}, time.Second)
	r := NewResolver(client, srv.URL, retry.Policy{MaxAttempts: 3}, log)

	res := r.Resolve(context.Background(), "alpha")
	require.True(t, res.Found)
	assert.Equal(t, "https://cdn.example/live/ch1.m3u8?token=abc", res.Stream.URL)
}
