package caldav

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSpec() EventSpec {
	return EventSpec{
		Summary: "Pasta Night",
		Start:   time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC),
		End:     time.Date(2025, 3, 10, 19, 0, 0, 0, time.UTC),
	}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(nil, "", "user", "pass", nil)
	assert.Error(t, err)

	_, err = NewClient(nil, "https://dav.example/cal", "", "pass", nil)
	assert.Error(t, err)

	_, err = NewClient(nil, "https://dav.example/cal", "user", "", nil)
	assert.Error(t, err)
}

func TestNewClientNormalizesBaseURL(t *testing.T) {
	c, err := NewClient(nil, "https://dav.example/cal", "user", "pass", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://dav.example/cal/", c.baseURL)

	c, err = NewClient(nil, "https://dav.example/cal/", "user", "pass", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://dav.example/cal/", c.baseURL)
}

func TestTestConnectionSuccess(t *testing.T) {
	var gotMethod, gotDepth, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotDepth = r.Header.Get("Depth")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusMultiStatus)
	}))
	defer srv.Close()

	c, err := NewClient(srv.Client(), srv.URL, "user", "pass", nil)
	require.NoError(t, err)

	result := c.TestConnection(context.Background())
	assert.True(t, result.Success)
	assert.Equal(t, "PROPFIND", gotMethod)
	assert.Equal(t, "0", gotDepth)

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass"))
	assert.Equal(t, wantAuth, gotAuth)
}

func TestTestConnectionAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewClient(srv.Client(), srv.URL, "user", "wrong", nil)
	require.NoError(t, err)

	result := c.TestConnection(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "401")
}

func TestTestConnectionNetworkFailure(t *testing.T) {
	c, err := NewClient(&http.Client{Timeout: 200 * time.Millisecond}, "http://127.0.0.1:1/dav", "user", "pass", nil)
	require.NoError(t, err)

	result := c.TestConnection(context.Background())
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Message)
}

func TestCreateEventPutsICS(t *testing.T) {
	var gotPath, gotContentType, gotIfNoneMatch, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotIfNoneMatch = r.Header.Get("If-None-Match")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := NewClient(srv.Client(), srv.URL+"/cal", "user", "pass", nil)
	require.NoError(t, err)

	spec := validSpec()
	spec.UID = "fixed-uid"
	created, err := c.CreateEvent(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, "fixed-uid", created.UID)
	assert.Equal(t, srv.URL+"/cal/fixed-uid.ics", created.Href)
	assert.Equal(t, `"abc123"`, created.ETag)
	assert.Equal(t, gotBody, created.RawICS)

	assert.Equal(t, "/cal/fixed-uid.ics", gotPath)
	assert.Equal(t, "text/calendar; charset=utf-8", gotContentType)
	assert.Equal(t, "*", gotIfNoneMatch)
	assert.Contains(t, gotBody, "SUMMARY:Pasta Night\r\n")
	assert.Contains(t, gotBody, "DTSTART:20250310T180000Z\r\n")
}

func TestCreateEventGeneratesUID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := NewClient(srv.Client(), srv.URL, "user", "pass", nil)
	require.NoError(t, err)

	created, err := c.CreateEvent(context.Background(), validSpec())
	require.NoError(t, err)
	assert.NotEmpty(t, created.UID)
}

func TestCreateEventRejectsInvertedWindow(t *testing.T) {
	requested := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = true
	}))
	defer srv.Close()

	c, err := NewClient(srv.Client(), srv.URL, "user", "pass", nil)
	require.NoError(t, err)

	spec := validSpec()
	spec.End = spec.Start
	_, err = c.CreateEvent(context.Background(), spec)
	assert.Error(t, err)

	spec.End = spec.Start.Add(-time.Hour)
	_, err = c.CreateEvent(context.Background(), spec)
	assert.Error(t, err)

	assert.False(t, requested, "validation must happen before any network call")
}

func TestCreateEventUIDCollision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "resource already exists", http.StatusPreconditionFailed)
	}))
	defer srv.Close()

	c, err := NewClient(srv.Client(), srv.URL, "user", "pass", nil)
	require.NoError(t, err)

	_, err = c.CreateEvent(context.Background(), validSpec())
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusPreconditionFailed, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "already exists")
}

func TestDeleteEventTreats404AsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/gone-uid.ics", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(srv.Client(), srv.URL, "user", "pass", nil)
	require.NoError(t, err)

	assert.NoError(t, c.DeleteEvent(context.Background(), "gone-uid"))
}

func TestDeleteEventPropagatesOtherFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := NewClient(srv.Client(), srv.URL, "user", "pass", nil)
	require.NoError(t, err)

	err = c.DeleteEvent(context.Background(), "some-uid")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestDeleteEventRequiresUID(t *testing.T) {
	c, err := NewClient(nil, "https://dav.example/cal", "user", "pass", nil)
	require.NoError(t, err)
	assert.Error(t, c.DeleteEvent(context.Background(), ""))
}
