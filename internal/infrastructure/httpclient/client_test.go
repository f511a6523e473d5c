package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/resilience"
)

func get(path string) func(req *resty.Request) (*resty.Response, error) {
	return func(req *resty.Request) (*resty.Response, error) {
		return req.Get(path)
	}
}

func TestExecuteReturnsResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
			w.Write([]byte("fine"))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, UserAgent: "test-agent"})
	ctx := context.Background()

	resp, err := client.Execute(ctx, get("/ok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "fine", resp.String())

	resp, err = client.Execute(ctx, get("/missing"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())

	resp, err = client.Execute(ctx, get("/broken"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode())

	counts := client.BreakerCounts()
	assert.Equal(t, uint32(3), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalFailures, "only the 5xx counts against the breaker")
}

func TestExecuteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(Config{BaseURL: url, Timeout: time.Second})

	resp, err := client.Execute(context.Background(), get("/anything"))
	assert.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, uint32(1), client.BreakerCounts().TotalFailures)
}

func TestExecuteRetriesTransportErrorsWhenEnabled(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Write([]byte("second time lucky"))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, RetryMax: 2})

	resp, err := client.Execute(context.Background(), get("/flaky"))
	require.NoError(t, err)
	assert.Equal(t, "second time lucky", resp.String())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestExecuteDoesNotRetryStatusCodes(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, RetryMax: 3})

	resp, err := client.Execute(context.Background(), get("/"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRequestFailsFastWhenBreakerOpen(t *testing.T) {
	var transitions []string
	client := NewClient(Config{
		Name: "store",
		OnStateChange: func(name string, from, to resilience.State) {
			transitions = append(transitions, name+":"+to.String())
		},
	})

	for i := 0; i < 10; i++ {
		_ = client.Breaker.Execute(func() error { return assert.AnError })
	}
	require.Equal(t, resilience.StateOpen, client.BreakerState())
	assert.Equal(t, []string{"store:open"}, transitions)

	req, err := client.Request(context.Background())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Nil(t, req)
}

func TestCanceledContextDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Execute(ctx, get("/slow"))
	assert.Error(t, err)
	assert.Zero(t, client.BreakerCounts().TotalFailures)
}

func TestSetRateLimit(t *testing.T) {
	client := NewClient(Config{RateLimit: 0})
	assert.Equal(t, 0, client.Limiter.Burst())

	client.SetRateLimit(0.5)
	assert.Equal(t, 1, client.Limiter.Burst())

	client.SetRateLimit(20)
	assert.Equal(t, 20, client.Limiter.Burst())
}
