package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	"lcdmatch/database"
	"lcdmatch/imageprocessor"
	"lcdmatch/logging"
	"lcdmatch/types"

	"github.com/gorilla/mux"
)

// errTimeout is reported when a vision task outlasts the server deadline.
var errTimeout = errors.New("comparison timed out")

// ClassifyResponse is the body of /api/classify.
type ClassifyResponse struct {
	IsRender bool                       `json:"isRender"`
	Stats    imageprocessor.RenderStats `json:"stats"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.LogWarning("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: RequestID(r)})
}

// awaitResult waits for a queued task until the server deadline or the
// client goes away. A late result is dropped.
func awaitResult[T any](r *http.Request, timeout time.Duration, ch <-chan T) (T, error) {
	var zero T
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v, nil
	case <-timer.C:
		return zero, errTimeout
	case <-r.Context().Done():
		return zero, r.Context().Err()
	}
}

// formImage decodes a multipart file field.
func formImage(r *http.Request, field string) (image.Image, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("missing form file %q", field)
	}
	defer file.Close()

	img, _, err := imageprocessor.DecodeColorImage(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return img, nil
}

// HealthHandler reports liveness
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CompareHandler compares multipart files image1 (capture) and image2
// (reference)
func (s *Server) CompareHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}

	image1, err := formImage(r, "image1")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	image2, err := formImage(r, "image2")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.respondComparison(w, r, image1, image2)
}

// CompareReferenceHandler compares multipart file image with the catalogued
// reference named in the path, optionally narrowed by ?group=
func (s *Server) CompareReferenceHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, r, http.StatusServiceUnavailable, "no reference catalogue configured")
		return
	}

	name := mux.Vars(r)["name"]
	ref, err := database.GetReference(s.db, name, r.URL.Query().Get("group"))
	if errors.Is(err, database.ErrReferenceNotFound) {
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	capture, err := formImage(r, "image")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	refImg, err := imageprocessor.LoadColorImage(ref.Path)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "cannot load reference: "+err.Error())
		return
	}

	s.respondComparison(w, r, capture, refImg)
}

func (s *Server) respondComparison(w http.ResponseWriter, r *http.Request, capture, reference image.Image) {
	result, err := awaitResult(r, s.timeout, s.cmp.CompareAsync(capture, reference))
	if errors.Is(err, errTimeout) {
		logging.LogWarning("request %s: comparison exceeded %v", RequestID(r), s.timeout)
		writeError(w, r, http.StatusGatewayTimeout, err.Error())
		return
	}
	if err != nil {
		// Client went away
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ClassifyHandler reports the render verdict of multipart file image
func (s *Server) ClassifyHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	img, err := formImage(r, "image")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	o, err := awaitResult(r, s.timeout, s.cmp.ClassifyAsync(img))
	if errors.Is(err, errTimeout) {
		writeError(w, r, http.StatusGatewayTimeout, err.Error())
		return
	}
	if err != nil {
		return
	}
	if o.Err != nil {
		// Classification failures mean "not rendered"
		logging.DebugLog("request %s: classification failed: %v", RequestID(r), o.Err)
	}

	writeJSON(w, http.StatusOK, ClassifyResponse{IsRender: o.Verdict.IsRendered(), Stats: o.Stats})
}

// ListReferencesHandler lists catalogued references, optionally by ?group=
func (s *Server) ListReferencesHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, r, http.StatusServiceUnavailable, "no reference catalogue configured")
		return
	}

	refs, err := database.ListReferences(s.db, r.URL.Query().Get("group"))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if refs == nil {
		refs = []types.ReferenceInfo{}
	}

	writeJSON(w, http.StatusOK, refs)
}
