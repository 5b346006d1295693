package handlers

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/idhub/authserver/internal/services"
	"github.com/idhub/authserver/types"
)

func (e *testEnv) uploadAvatar(t *testing.T, bearer string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(formFieldAvatar, "avatar.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, "/account/avatar", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+bearer)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestAvatarUploadAndFetch(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/auth/github/callback?code=abc", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("callback status %d", rec.Code)
	}
	session := decode[services.Session](t, rec)

	payload := []byte("fake image bytes")
	rec = env.uploadAvatar(t, session.Token, payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[types.Account](t, rec)
	wantURL := fmt.Sprintf("/account/avatar/account-%d", session.Account.ID)
	if updated.AvatarURL != wantURL {
		t.Fatalf("expected avatar url %q, got %q", wantURL, updated.AvatarURL)
	}

	rec = env.do(t, http.MethodGet, wantURL, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("fetch status %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/octet-stream" {
		t.Fatalf("expected octet-stream content type, got %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Fatal("fetched avatar does not match the uploaded bytes")
	}
}

func TestAvatarUploadRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.uploadAvatar(t, "garbage", []byte("img"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
}

func TestAvatarFetchUnknownKey(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/account/avatar/account-999", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing avatar, got %d", rec.Code)
	}
}
