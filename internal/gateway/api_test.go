package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/matheus3301/radio/internal/gateway/gatewaytest"
)

func TestAPICreateAndListUsers(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	api := NewAPI(srv.URL+"/", time.Second)
	ctx := context.Background()

	for _, u := range []string{"alice", "bob"} {
		if err := api.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser(%s) error = %v", u, err)
		}
	}

	users, err := api.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if !slices.Equal(users, []string{"alice", "bob"}) {
		t.Errorf("users = %v, want [alice bob]", users)
	}
}

func TestAPIServerErrorCarriesMessage(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.SetCreateError("username taken")
	api := NewAPI(srv.URL, time.Second)

	err := api.CreateUser(context.Background(), "bob")
	var serr *ServerError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %v, want *ServerError", err)
	}
	if serr.StatusCode != http.StatusConflict || serr.Message != "username taken" {
		t.Errorf("ServerError = %+v", serr)
	}
}

func TestAPIServerErrorWithoutBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	err := NewAPI(ts.URL, time.Second).SendMessage(context.Background(), "bob", "hi")
	var serr *ServerError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %v, want *ServerError", err)
	}
	if serr.Message != "Unknown error" {
		t.Errorf("Message = %q, want Unknown error", serr.Message)
	}
}

func TestAPILatestMessage(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.SetMessage("bob", "hello bob")
	api := NewAPI(srv.URL, time.Second)

	msg, err := api.LatestMessage(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	if msg != "hello bob" {
		t.Errorf("msg = %q, want hello bob", msg)
	}

	msg, err = api.LatestMessage(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if msg != "" {
		t.Errorf("msg for unknown user = %q, want empty", msg)
	}
}

func TestAPILatestMessagePlainText(t *testing.T) {
	srv := gatewaytest.NewServer(t)
	srv.SetPlainText(true)
	srv.SetMessage("bob", `{"not": "decoded"}`)

	msg, err := NewAPI(srv.URL, time.Second).LatestMessage(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	if msg != `{"not": "decoded"}` {
		t.Errorf("msg = %q, want raw body", msg)
	}
}

func TestAPILatestMessageMalformedJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message": `))
	}))
	defer ts.Close()

	if _, err := NewAPI(ts.URL, time.Second).LatestMessage(context.Background(), "bob"); err == nil {
		t.Error("LatestMessage() expected decode error")
	}
}

func TestAPITimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()

	start := time.Now()
	_, err := NewAPI(ts.URL, 50*time.Millisecond).ListUsers(context.Background())
	if err == nil {
		t.Fatal("ListUsers() expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestAPIConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	if err := NewAPI(addr, time.Second).CreateUser(context.Background(), "bob"); err == nil {
		t.Error("CreateUser() expected transport error")
	}
}
