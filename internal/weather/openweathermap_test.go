package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/jarvis/internal/reliability"
)

func TestCurrent(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "Moscow", r.URL.Query().Get("q"))
		assert.Equal(t, "k", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "ru", r.URL.Query().Get("lang"))
		_, _ = w.Write([]byte(`{"name":"Moscow","main":{"temp":-3.46},"weather":[{"description":"пасмурно"}]}`))
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: ts.URL}, nil)
	got, err := c.Current(context.Background(), "Moscow")
	require.NoError(t, err)
	assert.Equal(t, Report{City: "Moscow", Temperature: -3.46, Description: "пасмурно"}, got)
}

func TestCurrentNotConfigured(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{}, nil).Current(context.Background(), "Moscow")
	assert.ErrorIs(t, err, ErrNotConfigured)

	var nilClient *Client
	_, err = nilClient.Current(context.Background(), "Moscow")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCurrentNon200(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"cod":401}`))
	}))
	defer ts.Close()

	_, err := NewClient(Config{APIKey: "bad", BaseURL: ts.URL}, nil).Current(context.Background(), "Moscow")
	var se *reliability.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
}

func TestCurrentTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	_, err := NewClient(Config{APIKey: "k", BaseURL: ts.URL, Timeout: 20 * time.Millisecond}, nil).Current(context.Background(), "Moscow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
