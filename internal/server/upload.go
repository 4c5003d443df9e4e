package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("parse multipart: %v", err), http.StatusBadRequest)
		return
	}
	var refs []ArtifactRef
	for _, files := range r.MultipartForm.File {
		for _, fh := range files {
			art, err := s.saveUploadedFile(fh)
			if err != nil {
				http.Error(w, fmt.Sprintf("save upload %s: %v", fh.Filename, err), http.StatusBadRequest)
				return
			}
			refs = append(refs, toRef(art))
		}
	}
	if len(refs) == 0 {
		http.Error(w, "no files uploaded", http.StatusBadRequest)
		return
	}
	resp := struct {
		Files []ArtifactRef `json:"files"`
	}{Files: refs}
	writeJSON(w, http.StatusOK, resp)
}

// receiveInput stores the file carried by a /validate request. Multipart
// requests use their first file part; any other body is taken as the file
// itself, named by the "name" query parameter.
func (s *Server) receiveInput(w http.ResponseWriter, r *http.Request) (Artifact, error) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return Artifact{}, fmt.Errorf("parse multipart: %w", err)
		}
		for _, files := range r.MultipartForm.File {
			for _, fh := range files {
				return s.saveUploadedFile(fh)
			}
		}
		return Artifact{}, errors.New("no file provided")
	}
	name := filepath.Base(r.URL.Query().Get("name"))
	if name == "." || name == "/" {
		name = "upload.mkv"
	}
	return s.saveStream(r.Body, name)
}

func (s *Server) saveUploadedFile(fh *multipart.FileHeader) (Artifact, error) {
	if fh == nil {
		return Artifact{}, fmt.Errorf("nil file header")
	}
	src, err := fh.Open()
	if err != nil {
		return Artifact{}, err
	}
	defer src.Close()
	return s.saveStream(src, filepath.Base(fh.Filename))
}

func (s *Server) saveStream(src io.Reader, name string) (Artifact, error) {
	ext := filepath.Ext(name)
	pattern := "upload-*"
	if ext != "" {
		pattern = fmt.Sprintf("upload-*%s", ext)
	}
	dest, err := os.CreateTemp(s.uploadsDir, pattern)
	if err != nil {
		return Artifact{}, err
	}
	n, err := io.Copy(dest, src)
	if err == nil && n == 0 {
		err = errors.New("empty body")
	}
	if err != nil {
		dest.Close()
		os.Remove(dest.Name())
		return Artifact{}, err
	}
	dest.Close()
	return s.addArtifact(dest.Name(), name, guessContentType(name), "upload")
}
