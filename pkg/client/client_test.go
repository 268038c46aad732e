package client

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "token.json")
	want := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	if err := saveToken(path, want); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	got, err := TokenFromFile(path)
	if err != nil {
		t.Fatalf("TokenFromFile: %v", err)
	}
	if got.RefreshToken != want.RefreshToken || !got.Expiry.Equal(want.Expiry) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestTokenFromFile_Missing(t *testing.T) {
	if _, err := TokenFromFile(filepath.Join(t.TempDir(), "token.json")); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
		wantErr  bool
		status   int
	}{
		{name: "success", query: "?state=s1&code=abc", wantCode: "abc", status: http.StatusOK},
		{name: "state mismatch", query: "?state=other&code=abc", wantErr: true, status: http.StatusBadRequest},
		{name: "provider error", query: "?state=s1&error=access_denied", wantErr: true, status: http.StatusBadRequest},
		{name: "no code", query: "?state=s1", wantErr: true, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codeChan := make(chan string, 1)
			errChan := make(chan error, 1)
			h := callbackHandler("s1", codeChan, errChan)

			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, callbackPath+tt.query, nil))

			if rec.Code != tt.status {
				t.Errorf("status: got %d, want %d", rec.Code, tt.status)
			}
			select {
			case code := <-codeChan:
				if tt.wantErr || code != tt.wantCode {
					t.Errorf("unexpected code %q", code)
				}
			case err := <-errChan:
				if !tt.wantErr {
					t.Errorf("unexpected error %v", err)
				}
			default:
				t.Error("handler forwarded nothing")
			}
		})
	}
}

func TestCallbackHandler_RepeatedRequestDoesNotBlock(t *testing.T) {
	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)
	h := callbackHandler("s1", codeChan, errChan)

	for range 3 {
		h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, callbackPath+"?state=s1&code=abc", nil))
	}
	if got := <-codeChan; got != "abc" {
		t.Errorf("got %q", got)
	}
}

func TestGenerateState(t *testing.T) {
	a, err := generateState()
	if err != nil {
		t.Fatal(err)
	}
	b, err := generateState()
	if err != nil {
		t.Fatal(err)
	}
	if a == b || len(a) < 32 {
		t.Errorf("weak state tokens %q %q", a, b)
	}
}
