package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"statement_stitch/pkg/core/assemble"
	"statement_stitch/pkg/core/ingest"
	"statement_stitch/pkg/core/pipeline"
	"statement_stitch/pkg/core/store"
	"statement_stitch/pkg/core/synthesis"
	"statement_stitch/pkg/models"
)

// ConsolidateRequest is the JSON body of /consolidate and /inspect. Filings
// use the JSON grid dump format of the ingest package.
type ConsolidateRequest struct {
	Entity   string          `json:"entity"`
	Order    string          `json:"order"`
	Explicit []string        `json:"explicit"`
	Save     bool            `json:"save"`
	Filings  json.RawMessage `json:"filings"`
}

// ConsolidateResponse is the data of a JSON /consolidate response.
type ConsolidateResponse struct {
	Entity  string              `json:"entity,omitempty"`
	Report  *pipeline.RunReport `json:"report"`
	Skipped []string            `json:"skipped,omitempty"`
	Saved   bool                `json:"saved"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]string{"status": "ok"}})
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	format, err := responseFormat(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, filings, skipped, err := s.readFilings(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Save && s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}

	opts := s.opts
	if req.Order != "" {
		if opts.Order, err = synthesis.ParseOrder(req.Order); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if len(req.Explicit) > 0 {
		opts.Explicit = req.Explicit
	}

	report, err := pipeline.NewOrchestrator(s.extractor, s.logger).Run(r.Context(), filings, opts)
	if errors.Is(err, pipeline.ErrMalformedInput) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := ConsolidateResponse{Entity: req.Entity, Report: report, Skipped: skipped}
	if req.Save {
		if err := s.repo.Save(r.Context(), req.Entity, report.RunID, report.Statements); err != nil {
			s.logger.Error("save failed", zap.String("entity", req.Entity), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to save statements")
			return
		}
		resp.Saved = true
	}

	if format != "json" {
		s.render(w, format, req.Entity, report.Statements)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// inspection is what /inspect returns per filing.
type inspection struct {
	FilingID string                  `json:"filing_id"`
	Source   string                  `json:"source"`
	Regions  []pipeline.RegionReport `json:"regions"`
	Warnings []string                `json:"warnings,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	_, filings, _, err := s.readFilings(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out := make([]inspection, 0, len(filings))
	for _, f := range filings {
		res := s.extractor.ExtractFiling(f)
		in := inspection{FilingID: f.ID, Source: f.Source, Regions: res.Regions, Warnings: res.Warnings}
		if res.Err != nil {
			in.Error = res.Err.Error()
		}
		out = append(out, in)
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: out})
}

func (s *Server) handleStatements(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}
	format, err := responseFormat(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entity := chi.URLParam(r, "entity")
	snap, err := s.repo.Load(r.Context(), entity)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no statements for %s", entity))
		return
	}
	if err != nil {
		s.logger.Error("load failed", zap.String("entity", entity), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load statements")
		return
	}
	if format != "json" {
		s.render(w, format, snap.Entity, snap.Statements)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: snap})
}

// readFilings accepts a JSON ConsolidateRequest or a multipart form with one
// or more "file" parts plus entity, order and save fields. Files that cannot
// be decoded are skipped and named in skipped.
func (s *Server) readFilings(r *http.Request) (req ConsolidateRequest, filings []models.Filing, skipped []string, err error) {
	limit := int64(s.cfg.MaxUploadMB) << 20
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(limit); err != nil {
			return req, nil, nil, fmt.Errorf("invalid form: %w", err)
		}
		req.Entity = r.FormValue("entity")
		req.Order = r.FormValue("order")
		req.Save = r.FormValue("save") == "true"
		if ex := r.FormValue("explicit"); ex != "" {
			req.Explicit = strings.Split(ex, ",")
		}
		for _, fh := range r.MultipartForm.File["file"] {
			fs, err := decodeUpload(fh)
			if err != nil {
				skipped = append(skipped, fmt.Sprintf("%s: %v", fh.Filename, err))
				continue
			}
			filings = append(filings, fs...)
		}
	} else {
		if err := json.NewDecoder(io.LimitReader(r.Body, limit)).Decode(&req); err != nil {
			return req, nil, nil, fmt.Errorf("invalid request body: %w", err)
		}
		if len(req.Filings) == 0 {
			return req, nil, nil, errors.New("filings are required")
		}
		if filings, err = ingest.LoadJSON(req.Filings, "request"); err != nil {
			return req, nil, nil, err
		}
	}
	if len(filings) == 0 {
		return req, nil, skipped, errors.New("no filings could be read")
	}
	for i := range filings {
		if filings[i].Entity == "" {
			filings[i].Entity = req.Entity
		}
	}
	return req, filings, skipped, nil
}

func decodeUpload(fh *multipart.FileHeader) ([]models.Filing, error) {
	format, err := ingest.DetectFormat(fh.Filename)
	if err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return ingest.Decode(data, format, fh.Filename)
}

// responseFormat reads ?format=, defaulting to json. Unknown formats are
// rejected before any work is done.
func responseFormat(r *http.Request) (string, error) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	switch format {
	case "", "json":
		return "json", nil
	case "markdown", "md", "html", "xlsx":
		return format, nil
	}
	return "", fmt.Errorf("unknown format %q", format)
}

// render writes statements in a format accepted by responseFormat.
func (s *Server) render(w http.ResponseWriter, format, entity string, statements []synthesis.ConsolidatedStatement) {
	title := "Consolidated statements"
	if entity != "" {
		title = entity + " consolidated statements"
	}
	var err error
	switch format {
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		err = assemble.RenderMarkdown(w, statements)
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = assemble.RenderHTML(w, title, statements)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="statements.xlsx"`)
		err = assemble.WriteXLSX(w, statements)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
		return
	}
	if err != nil {
		s.logger.Error("render failed", zap.String("format", format), zap.Error(err))
	}
}
