package api

import (
	"errors"
	"net/http"

	"roomlink-api/marketplace/domain"
)

type uploadResponse struct {
	URL string `json:"url"`
}

// multipartOverhead cobre boundaries e headers além do arquivo em si.
const multipartOverhead = 1 << 20

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+multipartOverhead)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, h.Logger, domain.ErrTooLarge)
			return
		}
		writeError(w, r, h.Logger, domain.Invalid("file", "multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	url, err := h.Blobs.Put(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{URL: url})
}
