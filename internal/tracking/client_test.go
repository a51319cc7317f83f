package tracking

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientGetParcelSendsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status_code":0,"msg":"success","data":{"id":7,"status":"Pending"}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, StaticToken("tok-123"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	record, err := client.GetParcel(context.Background(), 7)
	if err != nil {
		t.Fatalf("get parcel: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	if record.ID != 7 || record.Status != "Pending" {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestClientGetParcelAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status_code":404,"msg":"Parcel not found","data":null}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, StaticToken("tok"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.GetParcel(context.Background(), 99)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 404 || apiErr.Msg != "Parcel not found" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestClientGetParcelInvalidEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, StaticToken("tok"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.GetParcel(context.Background(), 1)
	if !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected ErrResponseInvalid, got %v", err)
	}
}

func TestClientCancelParcelReturnsMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("cancel method = %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status_code":0,"msg":"Parcel order has been cancelled","data":{"id":7,"status":"Cancelled"}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, StaticToken("tok"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	record, msg, err := client.CancelParcel(context.Background(), 7)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if msg != "Parcel order has been cancelled" {
		t.Fatalf("msg = %q", msg)
	}
	if record.Status != "Cancelled" {
		t.Fatalf("record status = %q", record.Status)
	}
}

func TestClientTokenUnavailable(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:1", StaticToken(""))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.GetParcel(context.Background(), 1); !errors.Is(err, ErrTokenUnavailable) {
		t.Fatalf("expected ErrTokenUnavailable, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("  ", StaticToken("tok")); err == nil {
		t.Fatal("empty base url should be rejected")
	}
	if _, err := NewClient("http://localhost:8080/", nil); err == nil {
		t.Fatal("nil token source should be rejected")
	}
	client, err := NewClient("http://localhost:8080/", StaticToken("tok"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.BaseURL() != "http://localhost:8080" {
		t.Fatalf("base url not normalized: %q", client.BaseURL())
	}
}
