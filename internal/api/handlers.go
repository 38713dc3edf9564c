package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/juank/cpa-dashboard/backend/internal/dashboard"
	"github.com/juank/cpa-dashboard/backend/internal/db"
	"github.com/juank/cpa-dashboard/backend/internal/models"
	"github.com/juank/cpa-dashboard/backend/internal/processor"
	"go.uber.org/zap"
)

// limitBody caps JSON request bodies at the upload limit.
func (s *Server) limitBody(w http.ResponseWriter, r *http.Request) {
	if s.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	}
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	return io.ReadAll(r.Body)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.MaxUploadBytes); err != nil {
		JSONError(w, http.StatusBadRequest, "Failed to read upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	regPath, regName, err := saveFormFile(r, "registrations")
	if err != nil {
		JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(regPath)

	actPath, actName, err := saveFormFile(r, "activity")
	if err != nil {
		JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(actPath)

	rows, err := s.Engine.ProcessFiles(r.Context(), regPath, actPath)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, processor.ErrUnsupportedFile) {
			status = http.StatusBadRequest
		}
		s.Logger.Warn("Processing failed", zap.Error(err))
		JSONError(w, status, "Processing failed: "+err.Error())
		return
	}

	upload := processor.NewUpload(regName, actName)
	save, _ := strconv.ParseBool(r.URL.Query().Get("save"))
	if save {
		if err := s.Engine.Save(r.Context(), rows, upload); err != nil {
			JSONError(w, http.StatusInternalServerError, "Save failed: "+err.Error())
			return
		}
	} else {
		upload.Rows = len(rows)
		upload.Status = "processed"
		if err := s.DB.CreateUpload(r.Context(), upload); err != nil {
			s.Logger.Warn("Upload not recorded", zap.Error(err))
		}
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{
		"upload_id": upload.ID,
		"count":     len(rows),
		"saved":     save,
		"rows":      rows,
	})
}

// saveFormFile copies a multipart file to a temp path keeping its extension,
// which is what picks the parser.
func saveFormFile(r *http.Request, field string) (path, name string, err error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", "", fmt.Errorf("Failed to get file %q: %v", field, err)
	}
	defer file.Close()
	return writeTemp(file, header)
}

func writeTemp(src multipart.File, header *multipart.FileHeader) (string, string, error) {
	name := filepath.Base(header.Filename)
	dst, err := os.CreateTemp("", "upload_*_"+name)
	if err != nil {
		return "", "", fmt.Errorf("Failed to save file: %v", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", "", fmt.Errorf("Failed to save file: %v", err)
	}
	return dst.Name(), name, nil
}

type combineRequest struct {
	Registrations []models.Record `json:"registrations"`
	Activity      []models.Record `json:"activity"`
}

func (s *Server) handleCombine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req combineRequest
	s.limitBody(w, r)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Bad request")
		return
	}

	JSONResponse(w, http.StatusOK, processor.Combine(req.Registrations, req.Activity))
}

// viewRequest is the table state held by the front end.
type viewRequest struct {
	Rows      []models.Row              `json:"rows"`
	Filters   map[string]string         `json:"filters"`
	Global    string                    `json:"global"`
	Overrides map[string]map[string]int `json:"overrides"`
}

type view struct {
	Columns []string          `json:"columns"`
	Rows    []models.Row      `json:"rows"`
	Summary dashboard.Summary `json:"summary"`
}

// build lays the overrides over the rows, summarizes all of them and keeps
// the ones passing the filters.
func (req viewRequest) build() (view, error) {
	overrides, err := dashboard.OverridesFrom(req.Overrides)
	if err != nil {
		return view{}, err
	}
	rows := overrides.Apply(req.Rows)
	filter := dashboard.Filter{Columns: req.Filters, Global: req.Global}
	columns := dashboard.Columns(rows)
	if columns == nil {
		columns = []string{}
	}
	return view{
		Columns: columns,
		Rows:    filter.Apply(rows),
		Summary: dashboard.Summarize(rows),
	}, nil
}

func (s *Server) decodeView(w http.ResponseWriter, r *http.Request) (view, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return view{}, false
	}
	var req viewRequest
	s.limitBody(w, r)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Bad request")
		return view{}, false
	}
	v, err := req.build()
	if err != nil {
		JSONError(w, http.StatusBadRequest, err.Error())
		return view{}, false
	}
	return v, true
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	v, ok := s.decodeView(w, r)
	if !ok {
		return
	}
	JSONResponse(w, http.StatusOK, v)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	v, ok := s.decodeView(w, r)
	if !ok {
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="dashboard.csv"`)
		if err := dashboard.WriteCSV(w, v.Columns, v.Rows); err != nil {
			s.Logger.Error("CSV export failed", zap.Error(err))
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="dashboard.xlsx"`)
		if err := dashboard.WriteXLSX(w, v.Columns, v.Rows); err != nil {
			s.Logger.Error("XLSX export failed", zap.Error(err))
		}
	default:
		JSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown export format %q", format))
	}
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clients, err := s.DB.GetClients(r.Context())
	if err != nil {
		JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if clients == nil {
		clients = []models.Client{}
	}
	JSONResponse(w, http.StatusOK, clients)
}

func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	client, err := s.DB.GetClient(r.Context(), r.PathValue("id"))
	if errors.Is(err, db.ErrNotFound) {
		JSONError(w, http.StatusNotFound, "Client not found")
		return
	}
	if err != nil {
		JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSONResponse(w, http.StatusOK, client)
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uploads, err := s.DB.GetUploads(r.Context())
	if err != nil {
		JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if uploads == nil {
		uploads = []models.Upload{}
	}
	JSONResponse(w, http.StatusOK, uploads)
}
