package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	mu       sync.Mutex
	payloads []Payload
	paths    []string
	ids      []string
}

func (c *capture) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p Payload
		_ = json.NewDecoder(r.Body).Decode(&p)
		c.mu.Lock()
		c.payloads = append(c.payloads, p)
		c.paths = append(c.paths, r.Method+" "+r.URL.Path)
		c.ids = append(c.ids, r.Header.Get(RequestIDHeader))
		c.mu.Unlock()
		w.WriteHeader(status)
	}
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func TestNotifyPostsHitWithOneBasedZone(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(http.StatusOK))
	defer srv.Close()

	n, err := New(srv.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/games/hit", n.Endpoint())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	require.NoError(t, n.Notify("aa:bb", 0))
	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, "POST /games/hit", c.paths[0])
	assert.Equal(t, Payload{Events: []Event{{Event: "hit", RadioID: "aa:bb", Zone: 1}}}, c.payloads[0])
	_, err = uuid.Parse(c.ids[0])
	assert.NoError(t, err)
}

func TestNotifyOneRequestPerHit(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(http.StatusNoContent))
	defer srv.Close()

	n, err := New(srv.URL)
	require.NoError(t, err)
	require.NoError(t, n.Notify("aa", 0))
	require.NoError(t, n.Notify("aa", 2))
	require.NoError(t, n.Notify("bb", 1))
	n.Close()
	n.Run(context.Background())

	require.Equal(t, 3, c.count())
	assert.Equal(t, 3, c.payloads[1].Events[0].Zone)
	assert.Equal(t, "bb", c.payloads[2].Events[0].RadioID)
}

func TestDeliveryFailureDoesNotStopWorker(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(http.StatusInternalServerError))
	defer srv.Close()

	n, err := New(srv.URL)
	require.NoError(t, err)
	require.NoError(t, n.Notify("aa", 0))
	require.NoError(t, n.Notify("aa", 1))
	n.Close()
	n.Run(context.Background())

	assert.Equal(t, 2, c.count())
}

func TestUnreachableEndpointIsLoggedOnly(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	n, err := New(url, WithTimeout(100*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, n.Notify("aa", 0))
	n.Close()
	n.Run(context.Background())
}

func TestNotifyDropsWhenQueueFull(t *testing.T) {
	n, err := New("http://127.0.0.1:1", WithQueueSize(2))
	require.NoError(t, err)

	require.NoError(t, n.Notify("aa", 0))
	require.NoError(t, n.Notify("aa", 1))
	assert.ErrorIs(t, n.Notify("aa", 2), ErrQueueFull)
}

func TestDisabledNotifierDiscards(t *testing.T) {
	n, err := New("")
	require.NoError(t, err)
	assert.Empty(t, n.Endpoint())
	for i := 0; i < DefaultQueueSize*2; i++ {
		require.NoError(t, n.Notify("aa", 0))
	}
}

func TestNotifyAfterCloseIsIgnored(t *testing.T) {
	n, err := New("http://127.0.0.1:1")
	require.NoError(t, err)
	n.Close()
	n.Close()
	assert.NoError(t, n.Notify("aa", 0))
}
