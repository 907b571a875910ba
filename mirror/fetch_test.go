package mirror

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sandeshsk12/port/models"
)

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("body{color:red}"))
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{})
	body, err := f.Fetch(context.Background(), srv.URL+"/style.css")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "body{color:red}" {
		t.Errorf("unexpected body: %q", body)
	}
}

func TestFetch_NotFoundIsFetchFailed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := NewFetcher(FetcherOptions{})
	_, err := f.Fetch(context.Background(), srv.URL+"/missing.css")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	var me *models.MirrorError
	if !errors.As(err, &me) {
		t.Fatalf("expected MirrorError, got %T", err)
	}
	if me.Code != models.ErrCodeFetchFailed {
		t.Errorf("code = %s, want %s", me.Code, models.ErrCodeFetchFailed)
	}
}

func TestFetch_NetworkErrorIsFetchFailed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listens anymore

	f := NewFetcher(FetcherOptions{Timeout: 2 * time.Second})
	_, err := f.Fetch(context.Background(), url+"/x.js")
	if err == nil {
		t.Fatal("expected error for refused connection")
	}
	var me *models.MirrorError
	if !errors.As(err, &me) || me.Code != models.ErrCodeFetchFailed {
		t.Errorf("expected FETCH_FAILED, got %v", err)
	}
}

func TestFetch_BodySizeCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{MaxBodySize: 1024})
	body, err := f.Fetch(context.Background(), srv.URL+"/big.bin")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(body) != 1024 {
		t.Errorf("body should be capped at 1024 bytes, got %d", len(body))
	}
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{Timeout: 50 * time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL+"/slow")
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
