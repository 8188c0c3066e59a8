package payment

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// corsJSONError writes a JSON error response with CORS headers set
func corsJSONError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleListCases returns a list of all cases
func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := s.service.ListCases()
	if err != nil {
		slog.Error("Error listing cases", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, cases)
}

// handleCreateCase handles case creation
func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	c, err := s.service.CreateCase(req.Name, req.Description)
	if err != nil {
		slog.Error("Error creating case", "error", err)
		corsJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

// handleGetCase returns a case with its payments and notes
func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	c, payments, err := s.service.GetCaseWithPayments(id)
	if err != nil {
		corsError(w, "Case not found", http.StatusNotFound)
		return
	}
	notes, err := s.service.ListNotes(id)
	if err != nil {
		slog.Error("Error listing notes", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"case":     c,
		"payments": payments,
		"notes":    notes,
	})
}

// handleUpdateCase updates a case's name and description
func (s *Server) handleUpdateCase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	c, err := s.service.UpdateCase(id, req.Name, req.Description)
	if err != nil {
		corsJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// handleDeleteCase deletes a case and everything attached to it
func (s *Server) handleDeleteCase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.service.DeleteCase(id); err != nil {
		corsError(w, "Error deleting case", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListNotes returns the notes of a case
func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.service.ListNotes(r.PathValue("id"))
	if err != nil {
		slog.Error("Error listing notes", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, notes)
}

// handleAddNote attaches a note to a case
func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	note, err := s.service.AddNote(r.PathValue("id"), req.Text)
	if err != nil {
		corsJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

// handleExportCase streams the case's payments as CSV
func (s *Server) handleExportCase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	data, err := s.service.ExportCaseCSV(id)
	if err != nil {
		slog.Error("Error exporting case", "case_id", id, "error", err)
		corsError(w, "Case not found", http.StatusNotFound)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "case_"+id+".csv"))
	w.Write(data)
}

// handleUploadReceipt handles receipt upload into a case
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("id")

	// 50MB covers high-resolution phone screenshots
	maxFormSize := int64(50 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		corsJSONError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if err.Error() == "http: no such file" {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		corsJSONError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		corsJSONError(w, "File is too large. Maximum size is 50MB. Please compress or resize your image.", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		corsJSONError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		switch ext {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		case ".pdf":
			contentType = "application/pdf"
		case ".heic":
			contentType = "image/heic"
		case ".heif":
			contentType = "image/heif"
		default:
			contentType = "application/octet-stream"
		}
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	p, err := s.service.ProcessReceipt(caseID, header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		corsJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// handleGetPayment returns a single payment
func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.GetPayment(r.PathValue("id"))
	if err != nil {
		corsError(w, "Payment not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// handleUpdatePayment applies a manual edit to a payment
func (s *Server) handleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	var upd PaymentUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p, err := s.service.UpdatePayment(r.PathValue("id"), upd)
	if err != nil {
		corsJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// handleRescanPayment re-runs OCR and extraction for a payment
func (s *Server) handleRescanPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.RerunOCR(r.PathValue("id"))
	if err != nil {
		slog.Error("Error rescanning payment", "error", err)
		corsJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// handleDeletePayment deletes a payment
func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeletePayment(r.PathValue("id")); err != nil {
		corsError(w, "Error deleting payment", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetPaymentFile returns the original receipt file for a payment
func (s *Server) handleGetPaymentFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetPaymentFile(r.PathValue("id"))
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}
