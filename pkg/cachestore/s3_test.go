package cachestore

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves just enough of the S3 wire protocol for the client: bucket
// existence checks, object HEAD/GET/PUT. Auth headers are ignored.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	if len(parts) < 2 || parts[1] == "" {
		// bucket level requests: exists, location
		w.WriteHeader(http.StatusOK)
		return
	}
	key := parts[1]

	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			writeS3NotFound(w)
			return
		}
		setObjectHeaders(w, len(data))
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			writeS3NotFound(w)
			return
		}
		setObjectHeaders(w, len(data))
		_, _ = w.Write(data)
	case http.MethodPut:
		body, err := decodePayload(r)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.objects[key] = body
		f.puts++
		w.Header().Set("ETag", `"fake-etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (f *fakeS3) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func setObjectHeaders(w http.ResponseWriter, size int) {
	w.Header().Set("Content-Length", strconv.Itoa(size))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", `"fake-etag"`)
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
}

func writeS3NotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>key does not exist</Message></Error>`))
}

// decodePayload returns the object bytes of a PUT. The client signs plain
// HTTP uploads either with a whole-payload hash and a raw body, or with the
// streaming signature, which frames the body into aws-chunked segments that
// must be stripped.
func decodePayload(r *http.Request) ([]byte, error) {
	if !strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING") {
		return io.ReadAll(r.Body)
	}
	br := bufio.NewReader(r.Body)
	var out bytes.Buffer
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return out.Bytes(), nil
			}
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		sizeHex := line
		if i := strings.IndexByte(line, ';'); i >= 0 {
			sizeHex = line[:i]
		}
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			// trailer lines follow, the payload is complete
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, br, size); err != nil {
			return nil, err
		}
		_, _ = br.ReadString('\n')
	}
}

func newS3TestStore(t *testing.T, handler http.Handler) (*S3, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	store, err := NewS3(S3Config{
		Endpoint:  strings.TrimPrefix(server.URL, "http://"),
		AccessKey: "test-access",
		SecretKey: "test-secret",
		Bucket:    "transform-cache",
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return store, server
}

func TestS3RoundTrip(t *testing.T) {
	fake := newFakeS3()
	store, server := newS3TestStore(t, fake)
	defer server.Close()

	_, ok := store.Get("transform", "abc")
	assert.False(t, ok, "unknown key misses")

	store.Set("transform", "abc", []byte(`{"transformed":"query Q { user { id } }"}`))

	data, ok := store.Get("transform", "abc")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"transformed":"query Q { user { id } }"}`), data)

	_, ok = store.Get("resolve", "abc")
	assert.False(t, ok, "namespaces do not collide")
}

func TestS3InsertIfAbsent(t *testing.T) {
	fake := newFakeS3()
	store, server := newS3TestStore(t, fake)
	defer server.Close()

	store.Set("transform", "abc", []byte("first"))
	store.Set("transform", "abc", []byte("second"))

	data, ok := store.Get("transform", "abc")
	require.True(t, ok)
	assert.Equal(t, []byte("first"), data)
	assert.Equal(t, 1, fake.putCount())
}

func TestS3ErrorDegradesToMiss(t *testing.T) {
	t.Run("backend gone after init", func(t *testing.T) {
		fake := newFakeS3()
		store, server := newS3TestStore(t, fake)
		store.Set("transform", "abc", []byte("cached"))
		server.Close()

		_, ok := store.Get("transform", "abc")
		assert.False(t, ok)
		store.Set("transform", "other", []byte("ignored")) // must not panic
	})

	t.Run("backend always failing", func(t *testing.T) {
		store, server := newS3TestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, ok := store.Get("transform", "abc")
		assert.False(t, ok)
		store.Set("transform", "abc", []byte("ignored"))
		_, ok = store.Get("transform", "abc")
		assert.False(t, ok)
	})
}
