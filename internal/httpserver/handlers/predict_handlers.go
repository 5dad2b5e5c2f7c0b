package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"oncoscan/internal/auth"
	"oncoscan/internal/pipeline"
	"oncoscan/internal/scan"
)

const (
	multipartMemory = 32 << 20
	defaultFilename = "upload.bin"
)

// Predict accepts the study as multipart field "file" or as the raw body
// with the filename in X-Filename.
func Predict(p *pipeline.Pipeline, maxBytes int64, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		filename, data, err := readUpload(r)
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		c := auth.FromContext(r.Context())
		res, err := p.Predict(r.Context(), pipeline.Request{
			UserID:   c.UserID,
			Username: c.Subject,
			Filename: filename,
			Data:     data,
		})
		switch {
		case err == nil:
			respondJSON(w, res)
		case errors.Is(err, scan.ErrMalformedScan):
			http.Error(w, "could not decode scan: "+err.Error(), http.StatusUnprocessableEntity)
		default:
			lg.Errorw("prediction failed", "user", c.Subject, "filename", filename, "error", err)
			http.Error(w, "inference failed", http.StatusInternalServerError)
		}
	}
}

func readUpload(r *http.Request) (string, []byte, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return "", nil, err
		}
		f, fh, err := r.FormFile("file")
		if err != nil {
			return "", nil, errors.New("multipart field \"file\" required")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", nil, err
		}
		return uploadName(fh.Filename), data, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, err
	}
	return uploadName(r.Header.Get("X-Filename")), data, nil
}

func uploadName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultFilename
	}
	return name
}
