package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestionNotifySourceCreated(t *testing.T) {
	var got sourceCreatedPayload
	delivered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/internal/sources", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		close(delivered)
	}))
	defer srv.Close()

	client := NewIngestionClient(srv.URL, time.Second)
	sourceID := uuid.New()
	client.NotifySourceCreated(context.Background(), sourceID, "file", "lobby cam",
		"http://api/stream", "http://api/download", "tok123")

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
	assert.Equal(t, sourceID, got.SourceID)
	assert.Equal(t, "file", got.Kind)
	assert.Equal(t, "tok123", got.AccessToken)
	assert.Equal(t, "http://api/download", got.DownloadURL)
}

func TestIngestionNotifyDoesNotBlockCaller(t *testing.T) {
	delivered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		close(delivered)
	}))
	defer srv.Close()

	client := NewIngestionClient(srv.URL, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	client.NotifySourceCreated(ctx, uuid.New(), "stream", "cam", "rtsp://x", "", "tok")
	elapsed := time.Since(start)
	cancel()

	// The caller returns immediately; the slow round trip happens off the
	// request path.
	assert.Less(t, elapsed, 100*time.Millisecond)

	// And the notification still lands after the originating context is gone.
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("notification never reached the server")
	}
}

func TestIngestionNotifyFailureIsSwallowed(t *testing.T) {
	delivered := make(chan struct{}, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		delivered <- struct{}{}
	}))
	defer srv.Close()

	client := NewIngestionClient(srv.URL, time.Second)
	// Must not panic or block; failures are advisory.
	client.NotifySourceCreated(context.Background(), uuid.New(), "stream", "cam", "rtsp://x", "", "tok")
	client.NotifySourceDeleted(context.Background(), uuid.New())

	for i := 0; i < 2; i++ {
		select {
		case <-delivered:
		case <-time.After(2 * time.Second):
			t.Fatal("notification not delivered")
		}
	}
}

func TestIngestionDisabledClientIsNoop(t *testing.T) {
	client := NewIngestionClient("", time.Second)
	assert.False(t, client.Enabled())
	client.NotifySourceCreated(context.Background(), uuid.New(), "file", "cam", "", "", "tok")
	require.Error(t, client.Health(context.Background()))
}

func TestProcessorSubmitJob(t *testing.T) {
	var got submitJobRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(submitJobResponse{JobID: "ext-42"})
	}))
	defer srv.Close()

	client := NewProcessorClient(srv.URL, time.Second)
	sourceID := uuid.New()
	jobID, err := client.SubmitJob(context.Background(), sourceID,
		"http://api/integration/video/tok/download",
		"http://api/integration/processing-callback/cbtok")
	require.NoError(t, err)

	assert.Equal(t, "ext-42", jobID)
	assert.Equal(t, sourceID, got.SourceID)
	assert.Equal(t, "http://api/integration/processing-callback/cbtok", got.CallbackURL)
}

func TestProcessorSubmitJobServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewProcessorClient(srv.URL, time.Second)
	_, err := client.SubmitJob(context.Background(), uuid.New(), "http://x", "http://y")
	require.Error(t, err)
}

func TestProcessorSubmitJobEmptyJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(submitJobResponse{})
	}))
	defer srv.Close()

	client := NewProcessorClient(srv.URL, time.Second)
	_, err := client.SubmitJob(context.Background(), uuid.New(), "http://x", "http://y")
	require.Error(t, err)
}

func TestProcessorHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewProcessorClient(srv.URL, time.Second)
	require.NoError(t, client.Health(context.Background()))
}
