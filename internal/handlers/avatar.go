package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const (
	maxAvatarBytes  = 4 << 20
	formFieldAvatar = "avatar"
)

// UploadAvatar stores the caller's avatar image in object storage and
// records its key on the account.
func (h *AccountHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile(formFieldAvatar)
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()
	if header.Size > maxAvatarBytes {
		writeError(w, http.StatusBadRequest, "avatar too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("account-%d", account.ID)
	if err := h.avatars.Put(r.Context(), key, file, header.Size, contentType); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store avatar")
		return
	}

	updated, err := h.accountService.SetAvatar(r.Context(), account.ID, "/account/avatar/"+key)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// GetAvatar streams a stored avatar image back to the caller.
func (h *AccountHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	object, err := h.avatars.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "avatar not found")
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, object); err != nil {
		// Headers are already written; nothing more to report.
		return
	}
}
