package storage_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"channel-publisher/core/storage"
	"channel-publisher/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewClientRejectsIncompleteConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  storage.Config
		want string
	}{
		{"no endpoint", storage.Config{Bucket: "idx"}, "storage.endpoint"},
		{"scheme only", storage.Config{Endpoint: "https://", Bucket: "idx"}, "storage.endpoint"},
		{"no bucket", storage.Config{Endpoint: "localhost:9000"}, "storage.bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := storage.NewClient(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, client)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// bucketServer answers minio bucket requests for the buckets in existing and
// records every bucket it was asked to create.
type bucketServer struct {
	mu       sync.Mutex
	existing map[string]bool
	created  []string
}

func (s *bucketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := strings.Trim(r.URL.Path, "/")
	switch r.Method {
	case http.MethodHead:
		if s.existing[bucket] {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case http.MethodPut:
		s.existing[bucket] = true
		s.created = append(s.created, bucket)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestEnsureBucketAgainstServer(t *testing.T) {
	backend := &bucketServer{existing: map[string]bool{"kept": true}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	// The http:// scheme is stripped and selects plain HTTP.
	client, err := storage.NewClient(storage.Config{
		Endpoint:  srv.URL + "/",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "kept",
		Region:    "us-east-1",
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, storage.EnsureBucket(ctx, client, "kept", "us-east-1"))
	require.NoError(t, storage.EnsureBucket(ctx, client, "fresh", "us-east-1"))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, []string{"fresh"}, backend.created)
}

func TestEnsureBucket(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("exists", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "idx").Return(true, nil)

		require.NoError(t, storage.EnsureBucket(context.Background(), client, "idx", "eu-west-1"))
		client.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("created in region", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "idx").Return(false, nil)
		client.On("MakeBucket", mock.Anything, "idx", minio.MakeBucketOptions{Region: "eu-west-1"}).Return(nil)

		require.NoError(t, storage.EnsureBucket(context.Background(), client, "idx", "eu-west-1"))
		client.AssertExpectations(t)
	})

	t.Run("check fails", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "idx").Return(false, boom)

		err := storage.EnsureBucket(context.Background(), client, "idx", "")
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "failed to check bucket idx")
	})

	t.Run("create fails", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "idx").Return(false, nil)
		client.On("MakeBucket", mock.Anything, "idx", mock.Anything).Return(boom)

		err := storage.EnsureBucket(context.Background(), client, "idx", "")
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "failed to create bucket idx")
	})
}
