package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeliver_SignsPayload(t *testing.T) {
	const secret = "s3cret"
	var gotSig string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Port-Signature")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	event := &Event{Type: EventMirrorCompleted, JobID: "abc123", Timestamp: 1}
	if err := Deliver(context.Background(), srv.URL, secret, event); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}

	var decoded Event
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if decoded.Type != EventMirrorCompleted || decoded.JobID != "abc123" {
		t.Errorf("payload mismatch: %+v", decoded)
	}
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Port-Signature")
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", &Event{Type: EventSiteCompleted}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if gotSig != "" {
		t.Error("no signature should be sent without a secret")
	}
}

func TestDeliver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", &Event{}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestDeliver_SetsEventHeader(t *testing.T) {
	var gotEvent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEvent = r.Header.Get("X-Port-Event")
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", &Event{Type: EventSitePage}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if gotEvent != EventSitePage {
		t.Errorf("X-Port-Event = %q, want %q", gotEvent, EventSitePage)
	}
}

func TestDeliver_ClientErrorNotRetryable(t *testing.T) {
	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer rejecting.Close()

	err := Deliver(context.Background(), rejecting.URL, "", &Event{})
	if !errors.Is(err, errEndpointRejected) {
		t.Errorf("a 4xx should mark the delivery rejected, got %v", err)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	err = Deliver(context.Background(), failing.URL, "", &Event{})
	if err == nil || errors.Is(err, errEndpointRejected) {
		t.Errorf("a 5xx should stay retryable, got %v", err)
	}
}
