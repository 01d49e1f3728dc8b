package notify

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Notify(_ context.Context, m string) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
	return nil
}

func TestLineNotify(t *testing.T) {
	var (
		gotAuth string
		gotMsg  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseForm())
		gotMsg = r.PostForm.Get("message")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	l := NewLine("secret", 0, WithURL(srv.URL))
	require.NoError(t, l.Notify(context.Background(), "LONG_2021-04-07T17:59:18.037976"))
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "LONG_2021-04-07T17:59:18.037976", gotMsg)
}

func TestLineNotifyHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewLine("bad", 0, WithURL(srv.URL)).Notify(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid token")
}

func TestLineRateLimited(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	l := NewLine("t", 2, WithURL(srv.URL))
	ctx := context.Background()
	require.NoError(t, l.Notify(ctx, "1"))
	require.NoError(t, l.Notify(ctx, "2"))
	assert.ErrorIs(t, l.Notify(ctx, "3"), ErrRateLimited)
	assert.Equal(t, 2, hits)
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	boom := errors.New("boom")
	m := Multi{a, nil, Func(func(context.Context, string) error { return boom }), b}

	err := m.Notify(context.Background(), "hello")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"hello"}, a.msgs)
	assert.Equal(t, []string{"hello"}, b.msgs)

	assert.NoError(t, Multi{a}.Notify(context.Background(), "again"))
}

func TestLogAndNop(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewLog(zerolog.New(&buf)).Notify(context.Background(), "reinitialized"))
	assert.Contains(t, buf.String(), "reinitialized")
	assert.Contains(t, buf.String(), `"component":"notify"`)

	assert.NoError(t, Nop{}.Notify(context.Background(), "x"))
}
