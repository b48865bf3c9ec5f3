package rates

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePTAX serves canned quotes keyed by the MM-DD-YYYY date in the query
// string, mimicking the Olinda OData endpoint.
type fakePTAX struct {
	quotes   map[string]string // MM-DD-YYYY -> JSON body
	status   map[string]int    // MM-DD-YYYY -> forced status code
	requests atomic.Int64
}

func (f *fakePTAX) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		date := r.URL.Query().Get("@dataCotacao")
		date = date[1 : len(date)-1] // strip the surrounding quotes

		if code, ok := f.status[date]; ok {
			w.WriteHeader(code)
			return
		}
		body, ok := f.quotes[date]
		if !ok {
			// No quote published: the real service answers 200 with an empty set.
			body = `{"value":[]}`
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func quoteBody(buy, sell float64) string {
	return fmt.Sprintf(`{"value":[{"cotacaoCompra":%f,"cotacaoVenda":%f,"dataHoraCotacao":"2024-06-10 13:09:02.558"}]}`, buy, sell)
}

func testDay(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	require.NoError(t, err)
	return parsed
}

func TestResolveDirectHit(t *testing.T) {
	fake := &fakePTAX{quotes: map[string]string{
		"06-10-2024": quoteBody(5.20, 5.21),
	}}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	resolver := NewResolver(server.URL, server.Client(), 7)
	rate, err := resolver.Resolve(context.Background(), testDay(t, "2024-06-10"))
	require.NoError(t, err)
	assert.InDelta(t, 5.20, rate.Buy, 1e-9)
	assert.InDelta(t, 5.21, rate.Sell, 1e-9)
}

func TestResolveFallsBackOverWeekend(t *testing.T) {
	// Saturday and Sunday have no quote; Friday the 7th does.
	fake := &fakePTAX{quotes: map[string]string{
		"06-07-2024": quoteBody(5.30, 5.31),
	}}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	resolver := NewResolver(server.URL, server.Client(), 7)
	rate, err := resolver.Resolve(context.Background(), testDay(t, "2024-06-09"))
	require.NoError(t, err)
	assert.InDelta(t, 5.30, rate.Buy, 1e-9)
}

func TestResolveFallsBackOn404(t *testing.T) {
	fake := &fakePTAX{
		quotes: map[string]string{"06-07-2024": quoteBody(5.30, 5.31)},
		status: map[string]int{
			"06-09-2024": http.StatusNotFound,
			"06-08-2024": http.StatusNotFound,
		},
	}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	resolver := NewResolver(server.URL, server.Client(), 7)
	rate, err := resolver.Resolve(context.Background(), testDay(t, "2024-06-09"))
	require.NoError(t, err)
	assert.InDelta(t, 5.30, rate.Buy, 1e-9)
}

func TestResolveExhaustsLookbackWindow(t *testing.T) {
	fake := &fakePTAX{}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	resolver := NewResolver(server.URL, server.Client(), 7)
	_, err := resolver.Resolve(context.Background(), testDay(t, "2024-06-09"))
	assert.ErrorIs(t, err, ErrRateUnavailable)
	assert.EqualValues(t, 7, fake.requests.Load())
}

func TestResolveServerErrorAbortsImmediately(t *testing.T) {
	fake := &fakePTAX{status: map[string]int{
		"06-10-2024": http.StatusInternalServerError,
	}}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	resolver := NewResolver(server.URL, server.Client(), 7)
	_, err := resolver.Resolve(context.Background(), testDay(t, "2024-06-10"))
	require.Error(t, err)
	// A failing source is not the same as "no quote published".
	assert.NotErrorIs(t, err, ErrRateUnavailable)
	assert.EqualValues(t, 1, fake.requests.Load())
}

func TestResolveCachesUnderRequestedDate(t *testing.T) {
	fake := &fakePTAX{quotes: map[string]string{
		"06-07-2024": quoteBody(5.30, 5.31),
	}}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	resolver := NewResolver(server.URL, server.Client(), 7)

	_, err := resolver.Resolve(context.Background(), testDay(t, "2024-06-09"))
	require.NoError(t, err)
	after := fake.requests.Load()

	// The fallback result is cached under the Sunday key, so the repeat lookup
	// makes no further requests.
	rate, err := resolver.Resolve(context.Background(), testDay(t, "2024-06-09"))
	require.NoError(t, err)
	assert.InDelta(t, 5.30, rate.Buy, 1e-9)
	assert.Equal(t, after, fake.requests.Load())

	resolver.Flush()
	_, err = resolver.Resolve(context.Background(), testDay(t, "2024-06-09"))
	require.NoError(t, err)
	assert.Greater(t, fake.requests.Load(), after)
}

func TestPrefetchResolvesDistinctDates(t *testing.T) {
	fake := &fakePTAX{quotes: map[string]string{
		"06-10-2024": quoteBody(5.20, 5.21),
		"06-11-2024": quoteBody(5.25, 5.26),
	}}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	resolver := NewResolver(server.URL, server.Client(), 7)
	dates := []time.Time{
		testDay(t, "2024-06-10"),
		testDay(t, "2024-06-11"),
		testDay(t, "2024-06-10"), // duplicate, resolved once
	}
	require.NoError(t, resolver.Prefetch(context.Background(), dates))
	assert.EqualValues(t, 2, fake.requests.Load())

	rate, err := resolver.Resolve(context.Background(), testDay(t, "2024-06-11"))
	require.NoError(t, err)
	assert.InDelta(t, 5.25, rate.Buy, 1e-9)
	assert.EqualValues(t, 2, fake.requests.Load())
}

func TestPrefetchSurfacesFirstError(t *testing.T) {
	fake := &fakePTAX{}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	resolver := NewResolver(server.URL, server.Client(), 2)
	err := resolver.Prefetch(context.Background(), []time.Time{testDay(t, "2024-06-09")})
	assert.ErrorIs(t, err, ErrRateUnavailable)
}
