package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"example.com/mkvgate/internal/common"
	"example.com/mkvgate/internal/diag"
	"example.com/mkvgate/internal/report"
	"example.com/mkvgate/internal/validate"
)

// Server coordinates HTTP handlers and manages temporary artifacts produced by
// validation requests.
type Server struct {
	artifacts  *ArtifactStore
	workDir    string
	uploadsDir string
	maxUpload  int64
	defaults   validate.Options
	history    *common.History
	sem        chan struct{}
}

// Artifact represents a file generated or stored by the daemon.
type Artifact struct {
	ID          string
	Path        string
	Name        string
	ContentType string
	Size        int64
	Kind        string
}

// ArtifactRef is the public representation returned in API responses.
type ArtifactRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// ArtifactStore keeps track of generated artifacts for later download.
type ArtifactStore struct {
	mu      sync.RWMutex
	entries map[string]Artifact
}

// NewServer constructs a Server rooted at a temporary workspace directory.
func NewServer(opts Options) (*Server, error) {
	storageDir := opts.StorageDir
	if storageDir == "" {
		storageDir = os.TempDir()
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, err
	}
	workDir, err := os.MkdirTemp(storageDir, "mkvgated-")
	if err != nil {
		return nil, err
	}
	uploadsDir := filepath.Join(workDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	s := &Server{
		artifacts:  &ArtifactStore{entries: make(map[string]Artifact)},
		workDir:    workDir,
		uploadsDir: uploadsDir,
		maxUpload:  opts.MaxUploadBytes,
		defaults:   opts.Defaults,
		history:    opts.History,
		sem:        make(chan struct{}, concurrency),
	}
	return s, nil
}

// Close removes any temporary state associated with the server.
func (s *Server) Close() error {
	if s == nil || s.workDir == "" {
		return nil
	}
	return os.RemoveAll(s.workDir)
}

func (s *Server) tempPath(pattern string) (string, error) {
	f, err := os.CreateTemp(s.workDir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func (s *Server) addArtifact(path, displayName, contentType, kind string) (Artifact, error) {
	if path == "" {
		return Artifact{}, errors.New("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	art := Artifact{
		ID:          uuid.NewString(),
		Path:        path,
		Name:        displayName,
		ContentType: contentType,
		Size:        info.Size(),
		Kind:        kind,
	}
	if art.Name == "" {
		art.Name = filepath.Base(path)
	}
	if art.ContentType == "" {
		art.ContentType = guessContentType(art.Name)
	}
	s.artifacts.mu.Lock()
	s.artifacts.entries[art.ID] = art
	s.artifacts.mu.Unlock()
	return art, nil
}

func (s *Server) getArtifact(id string) (Artifact, bool) {
	s.artifacts.mu.RLock()
	art, ok := s.artifacts.entries[id]
	s.artifacts.mu.RUnlock()
	return art, ok
}

// acquire takes a validation slot, giving up when ctx ends first.
func (s *Server) acquire(ctx context.Context) (func(), error) {
	select {
	case s.sem <- struct{}{}:
		return func() { <-s.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// validateResponse is the body of a non-streaming /validate reply and the
// last object of a streaming one.
type validateResponse struct {
	Type       string            `json:"type,omitempty"`
	RunID      string            `json:"runId"`
	Result     *validate.Result  `json:"result"`
	Acceptance report.Acceptance `json:"acceptance"`
	Artifacts  []ArtifactRef     `json:"artifacts"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	opts, err := parseValidateQuery(q, s.defaults)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var input Artifact
	if id := q.Get("input"); id != "" {
		art, ok := s.getArtifact(id)
		if !ok || art.Kind != "upload" {
			http.Error(w, fmt.Sprintf("unknown input %s", id), http.StatusBadRequest)
			return
		}
		input = art
	} else {
		input, err = s.receiveInput(w, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	release, err := s.acquire(r.Context())
	if err != nil {
		http.Error(w, "server busy", http.StatusServiceUnavailable)
		return
	}
	defer release()

	log := common.Logger()
	sink := diag.NewSink(nil, opts.NoWarn)
	var writer *NDJSONWriter
	if q.Get("stream") == "true" {
		writer = NewNDJSONWriter(w)
		w.Header().Set("Content-Type", "application/x-ndjson")
		sink.OnRecord = func(d diag.Diagnostic) {
			if err := writer.WriteDiagnostic(d); err != nil {
				log.Debug("stream write failed", "err", err)
			}
		}
	}
	fail := func(status int, err error) {
		if writer != nil {
			_ = writer.WriteObject(map[string]any{"type": "error", "error": err.Error()})
			return
		}
		http.Error(w, err.Error(), status)
	}

	res, err := validate.ValidateFile(r.Context(), input.Path, opts, sink)
	var fe *validate.FatalError
	switch {
	case res == nil:
		fail(http.StatusBadRequest, err)
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Debug("validation cancelled", "input", input.Name)
		return
	case err != nil && !errors.As(err, &fe):
		fail(http.StatusInternalServerError, err)
		return
	}
	res.File = input.Name

	resp, err := s.publish(input, sink, res)
	if err != nil {
		fail(http.StatusInternalServerError, err)
		return
	}
	log.Info("validated", "input", input.Name, "run", resp.RunID, "valid", res.Valid, "errors", res.Errors)
	if writer != nil {
		resp.Type = "acceptance"
		_ = writer.WriteObject(resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// publish writes the diagnostics, acceptance JSON and PDF of a run as
// downloadable artifacts and appends the run to the history.
func (s *Server) publish(input Artifact, sink *diag.Sink, res *validate.Result) (validateResponse, error) {
	resp := validateResponse{RunID: common.NewRunID(), Result: res}
	digest, size, err := common.Blake3OfFile(input.Path)
	if err != nil {
		return resp, fmt.Errorf("digest: %w", err)
	}
	acc := report.NewAcceptance(sink, res)
	acc.RunID = resp.RunID
	acc.Digest = digest
	acc.Size = size
	resp.Acceptance = acc

	diagPath, err := s.tempPath("diagnostics-*.ndjson")
	if err != nil {
		return resp, err
	}
	if err := sink.WriteDiagnosticsNDJSON(diagPath); err != nil {
		return resp, fmt.Errorf("write diagnostics: %w", err)
	}
	accPath, err := s.tempPath("acceptance-*.json")
	if err != nil {
		return resp, err
	}
	if err := report.SaveAcceptanceJSON(acc, accPath); err != nil {
		return resp, fmt.Errorf("write acceptance: %w", err)
	}
	pdfPath, err := s.tempPath("acceptance-*.pdf")
	if err != nil {
		return resp, err
	}
	if err := report.SaveAcceptancePDF(acc, pdfPath); err != nil {
		return resp, fmt.Errorf("write acceptance pdf: %w", err)
	}
	for _, a := range []struct{ path, name, kind string }{
		{diagPath, "diagnostics.ndjson", "diagnostics"},
		{accPath, "acceptance_report.json", "acceptance"},
		{pdfPath, "acceptance_report.pdf", "acceptance"},
	} {
		art, err := s.addArtifact(a.path, a.name, "", a.kind)
		if err != nil {
			return resp, fmt.Errorf("register %s: %w", a.name, err)
		}
		resp.Artifacts = append(resp.Artifacts, toRef(art))
	}

	if s.history != nil {
		_, err := s.history.Append(common.HistoryEntry{
			RunID:    resp.RunID,
			File:     input.Name,
			Digest:   digest,
			Size:     size,
			Profile:  res.Profile,
			Valid:    res.Valid,
			Fatal:    res.Fatal,
			Errors:   res.Errors,
			Warnings: res.Warnings,
		})
		if err != nil {
			return resp, fmt.Errorf("history: %w", err)
		}
	}
	return resp, nil
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, profileList())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"running": len(s.sem),
		"slots":   cap(s.sem),
	})
}

func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	if id == "" {
		writeJSON(w, http.StatusOK, s.listArtifacts())
		return
	}
	art, ok := s.getArtifact(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		http.Error(w, fmt.Sprintf("open artifact: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, fmt.Sprintf("stat artifact: %v", err), http.StatusInternalServerError)
		return
	}
	if art.ContentType != "" {
		w.Header().Set("Content-Type", art.ContentType)
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	io.Copy(w, f)
}

func toRef(art Artifact) ArtifactRef {
	return ArtifactRef{
		ID:          art.ID,
		Name:        art.Name,
		ContentType: art.ContentType,
		Size:        art.Size,
		Kind:        art.Kind,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func guessContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "application/json"
	case ".ndjson":
		return "application/x-ndjson"
	case ".pdf":
		return "application/pdf"
	case ".mkv", ".mka", ".mks":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".xz":
		return "application/x-xz"
	default:
		return "application/octet-stream"
	}
}

func (s *Server) listArtifacts() []ArtifactRef {
	s.artifacts.mu.RLock()
	refs := make([]ArtifactRef, 0, len(s.artifacts.entries))
	for _, art := range s.artifacts.entries {
		refs = append(refs, toRef(art))
	}
	s.artifacts.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}
