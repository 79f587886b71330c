package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"vulndash/internal/analysis"
	"vulndash/internal/export"
	"vulndash/internal/logger"
	"vulndash/internal/models"
	"vulndash/internal/pipeline"
	"vulndash/internal/telemetry"
)

const (
	uploadField    = "file"
	uploadIDHeader = "X-Upload-Id"
)

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.render(w, http.StatusOK, s.newPage())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	log := s.log.With("upload_id", id)
	page := s.newPage()

	w.Header().Set(uploadIDHeader, id)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())

	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes()); err != nil {
		if isTooLarge(err) {
			page.Banner = &pipeline.Failure{Kind: "too_large", Level: pipeline.LevelError, Message: "Uploaded file exceeds the size limit."}
			s.render(w, http.StatusRequestEntityTooLarge, page)

			return
		}

		log.Warn("bad upload form", "error", err)
		page.Banner = &pipeline.Failure{Kind: "bad_request", Level: pipeline.LevelError, Message: "Could not read the upload form."}
		s.render(w, http.StatusBadRequest, page)

		return
	}

	file, hdr, err := r.FormFile(uploadField)
	if err != nil {
		s.render(w, http.StatusOK, page)

		return
	}
	defer file.Close() //nolint:errcheck

	page.Filename = hdr.Filename

	if !strings.EqualFold(filepath.Ext(hdr.Filename), ".json") {
		page.Banner = &pipeline.Failure{Kind: "bad_extension", Level: pipeline.LevelError, Message: "Only .json files are accepted."}
		s.render(w, http.StatusOK, page)

		return
	}

	log.Info("upload received", "filename", hdr.Filename, "size", hdr.Size)

	rep, err := s.pipeline.Run(logger.WithContext(r.Context(), log), file)
	if err != nil {
		f := pipeline.Describe(err)
		page.Banner = &f
		s.render(w, http.StatusOK, page)

		return
	}

	page.Report = buildReportView(rep, s.cfg.Export.Filename)
	s.render(w, http.StatusOK, page)
}

type analyzeResponse struct {
	UploadID   string           `json:"upload_id"`
	Records    int              `json:"records"`
	Rejected   int              `json:"rejected"`
	OutOfRange int              `json:"out_of_range"`
	Summary    analysis.Summary `json:"summary"`
	HighRisk   []models.Record  `json:"high_risk"`
	Rejections []string         `json:"rejections,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Level string `json:"level"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()

	rep, ok := s.runBody(w, r, id)
	if !ok {
		return
	}

	resp := analyzeResponse{
		UploadID:   id,
		Records:    rep.Result.Table.Len(),
		Rejected:   rep.Result.Rejected,
		OutOfRange: rep.Result.OutOfRange,
		Summary:    rep.Summary,
		HighRisk:   rep.HighRisk.Records,
	}

	if resp.HighRisk == nil {
		resp.HighRisk = []models.Record{}
	}

	for _, rej := range rep.Result.Rejections {
		resp.Rejections = append(resp.Rejections, rej.String())
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.runBody(w, r, uuid.NewString())
	if !ok {
		return
	}

	w.Header().Set("Content-Type", export.ContentType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.cfg.Export.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rep.CSV)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	points, err := s.telemetry.Collect(r.Context())
	if err != nil {
		s.log.Error("failed to collect metrics", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "failed to collect metrics", Kind: pipeline.KindInternal, Level: string(pipeline.LevelError),
		})

		return
	}

	if points == nil {
		points = []telemetry.Point{}
	}

	writeJSON(w, http.StatusOK, points)
}

// runBody reads a raw JSON body and runs the pipeline, writing the error
// response itself when it fails.
func (s *Server) runBody(w http.ResponseWriter, r *http.Request, id string) (*pipeline.Report, bool) {
	log := s.log.With("upload_id", id)

	w.Header().Set(uploadIDHeader, id)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes()))
	if err != nil {
		if isTooLarge(err) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error: "request body exceeds the size limit", Kind: "too_large", Level: string(pipeline.LevelError),
			})

			return nil, false
		}

		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "failed to read request body", Kind: "bad_request", Level: string(pipeline.LevelError),
		})

		return nil, false
	}

	log.Debug("api request", "path", r.URL.Path, "size", len(body))

	rep, err := s.pipeline.Run(logger.WithContext(r.Context(), log), bytes.NewReader(body))
	if err != nil {
		f := pipeline.Describe(err)

		status := http.StatusUnprocessableEntity
		if f.Kind == pipeline.KindMalformedJSON {
			status = http.StatusBadRequest
		}

		writeJSON(w, status, errorResponse{Error: f.Message, Kind: f.Kind, Level: string(f.Level)})

		return nil, false
	}

	return rep, true
}

func (s *Server) render(w http.ResponseWriter, status int, p page) {
	var buf bytes.Buffer

	if err := s.tmpl.Execute(&buf, p); err != nil {
		s.log.Error("failed to render page", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError

	return errors.As(err, &maxErr)
}
