package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tunaaoguzhann/schoolgate/directory"
	"github.com/tunaaoguzhann/schoolgate/logging"
)

func (s *Server) handleListSchools(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	listing, err := s.registry.Browse(r.Context(), directory.Query{
		Search: q.Get("q"),
		City:   q.Get("city"),
		State:  q.Get("state"),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to load schools", nil, err)
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

// handleAddSchool accepts either JSON or a multipart form with an optional
// "image" file part.
func (s *Server) handleAddSchool(w http.ResponseWriter, r *http.Request) {
	var in directory.NewSchool
	var upload *directory.Upload

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1<<20)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidPayload, "invalid form", nil, err)
			return
		}
		in = directory.NewSchool{
			Name:    r.FormValue("name"),
			Address: r.FormValue("address"),
			City:    r.FormValue("city"),
			State:   r.FormValue("state"),
			Contact: r.FormValue("contact"),
			EmailID: r.FormValue("email_id"),
		}
		file, header, err := r.FormFile("image")
		switch {
		case err == nil:
			defer file.Close()
			upload = &directory.Upload{Filename: header.Filename, Body: file}
		case errors.Is(err, http.ErrMissingFile):
		default:
			respondError(w, http.StatusBadRequest, ErrCodeInvalidPayload, "invalid image", nil, err)
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidPayload, "invalid request", nil, err)
		return
	}

	if _, err := directory.Validate(in); err != nil {
		respondValidation(w, err)
		return
	}

	claims := grantFrom(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "missing grant", nil, nil)
		return
	}
	// Redeem before Add so concurrent requests with one grant cannot both
	// insert; a failed Add gives the grant back.
	if err := s.grants.Redeem(claims); err != nil {
		respondError(w, http.StatusConflict, ErrCodeGrantUsed, "grant already used", nil, err)
		return
	}

	school, err := s.registry.Add(r.Context(), in, upload)
	if err != nil {
		s.grants.Restore(claims)
	}
	switch {
	case err == nil:
	case errors.Is(err, directory.ErrInvalidSchool):
		respondValidation(w, err)
		return
	case errors.Is(err, directory.ErrUnsupportedImage), errors.Is(err, directory.ErrImageTooLarge):
		respondError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error(), nil, nil)
		return
	default:
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to add school", nil, err)
		return
	}

	logging.Logger.WithField("verified_by", claims.Subject).Infof("school %d added", school.ID)
	respondJSON(w, http.StatusCreated, school)
}

func respondValidation(w http.ResponseWriter, err error) {
	var verr *directory.ValidationError
	if errors.As(err, &verr) {
		respondError(w, http.StatusUnprocessableEntity, ErrCodeValidation, "validation failed", verr.Fields, nil)
		return
	}
	respondError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error(), nil, nil)
}
