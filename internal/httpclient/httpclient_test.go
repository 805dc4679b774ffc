package httpclient_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-broker/internal/httpclient"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsTimeout(t *testing.T) {
	require.Equal(t, httpclient.DefaultTimeout, httpclient.New(0).Timeout)
	require.Equal(t, 3*time.Second, httpclient.New(3*time.Second).Timeout)
}

func TestClientTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	_, err := httpclient.New(50 * time.Millisecond).Get(srv.URL)
	require.Error(t, err)
}
