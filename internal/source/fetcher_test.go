package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	gobreaker "github.com/sony/gobreaker/v2"
)

func TestMultiFetcher_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enrolment.csv")
	if err := os.WriteFile(path, []byte("date,state\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewMultiFetcher(nil)

	for _, uri := range []string{path, "file://" + path} {
		data, err := f.Fetch(context.Background(), uri)
		if err != nil {
			t.Fatalf("Fetch(%q) error = %v", uri, err)
		}
		if string(data) != "date,state\n" {
			t.Errorf("Fetch(%q) = %q", uri, data)
		}
	}

	if _, err := f.Fetch(context.Background(), filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("Fetch() expected error for missing file")
	}
}

func TestMultiFetcher_UnsupportedScheme(t *testing.T) {
	f := NewMultiFetcher(nil)

	tests := []string{"ftp://host/file.csv", "s3://bucket/key.csv"}
	for _, uri := range tests {
		_, err := f.Fetch(context.Background(), uri)
		if !errors.Is(err, ErrUnsupportedScheme) {
			t.Errorf("Fetch(%q) error = %v, want ErrUnsupportedScheme", uri, err)
		}
	}
}

func TestHTTPClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.Error(w, "not here", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	f := NewMultiFetcher(nil)

	data, err := f.Fetch(context.Background(), srv.URL+"/india.geojson")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(string(data), "FeatureCollection") {
		t.Errorf("Fetch() = %q", data)
	}

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Errorf("Fetch() error = %v, want status 404", err)
	}
}

func TestHTTPClient_BreakerOpens(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClientWith(srv.Client(), 2, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := c.Fetch(context.Background(), srv.URL); err == nil {
			t.Fatal("Fetch() expected error")
		}
	}
	if c.State() != "open" {
		t.Errorf("State() = %v, want open", c.State())
	}

	_, err := c.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Fetch() error = %v, want ErrOpenState", err)
	}
	if calls != 2 {
		t.Errorf("server calls = %d, want 2", calls)
	}
}

func TestHTTPClient_CancelledCallsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewHTTPClientWith(srv.Client(), 2, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		if _, err := c.Fetch(ctx, srv.URL); !errors.Is(err, context.Canceled) {
			t.Fatalf("Fetch() error = %v, want context.Canceled", err)
		}
	}
	if c.State() != "closed" {
		t.Errorf("State() = %v, want closed", c.State())
	}

	data, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("Fetch() = %q, want ok", data)
	}
}

type fakeObjects map[string]string

func (f fakeObjects) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Client_Fetch(t *testing.T) {
	f := NewMultiFetcher(&S3Client{api: fakeObjects{"uidai/raw/biometric.csv": "date,bio_age_5_17\n"}})

	data, err := f.Fetch(context.Background(), "s3://uidai/raw/biometric.csv")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != "date,bio_age_5_17\n" {
		t.Errorf("Fetch() = %q", data)
	}

	if _, err := f.Fetch(context.Background(), "s3://uidai/raw/none.csv"); err == nil {
		t.Error("Fetch() expected error for missing object")
	}
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{"s3://bucket/key.csv", "bucket", "key.csv", false},
		{"s3://bucket/a/b/c.xlsx", "bucket", "a/b/c.xlsx", false},
		{"s3://bucket", "", "", true},
		{"s3:///key", "", "", true},
		{"http://bucket/key", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := parseS3URI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseS3URI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.wantBucket || key != tt.wantKey {
				t.Errorf("parseS3URI() = %q, %q, want %q, %q", bucket, key, tt.wantBucket, tt.wantKey)
			}
		})
	}
}
