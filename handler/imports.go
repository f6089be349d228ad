package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kopakredit/custimport/config"
	"github.com/kopakredit/custimport/middleware"
	"github.com/kopakredit/custimport/model"
	"github.com/kopakredit/custimport/service"
)

// maxResultErrors caps the per-row errors returned with a completed
// import; the full count is still reported in error_count.
const maxResultErrors = 20

type ImportHandler struct {
	pipeline *service.Pipeline
	upload   *config.UploadConfig
}

func NewImportHandler(pipeline *service.Pipeline, uploadCfg *config.UploadConfig) *ImportHandler {
	return &ImportHandler{pipeline: pipeline, upload: uploadCfg}
}

// Upload creates a new import session from an uploaded CSV file
func (h *ImportHandler) Upload(c *gin.Context) {
	operator := middleware.GetOperator(c)

	filename, data, ok := h.readUpload(c)
	if !ok {
		return
	}

	sess, warnings, err := h.pipeline.Begin(c.Request.Context(), operator, filename, data)
	if err != nil {
		respondError(c, err)
		return
	}

	view := sessionView(sess)
	if len(warnings) > 0 {
		view["warnings"] = warnings
	}
	view["suggested_mapping"] = service.SuggestMapping(sess.Headers)
	if url := h.pipeline.FileURL(c.Request.Context(), sess); url != "" {
		view["file_url"] = url
	}

	c.JSON(http.StatusOK, view)
}

// AttachFile uploads a new CSV into a session that was reset back to
// the upload stage
func (h *ImportHandler) AttachFile(c *gin.Context) {
	operator := middleware.GetOperator(c)
	id := c.Param("id")

	filename, data, ok := h.readUpload(c)
	if !ok {
		return
	}

	sess, warnings, err := h.pipeline.AttachFile(c.Request.Context(), id, operator, filename, data)
	if err != nil {
		respondError(c, err)
		return
	}

	view := sessionView(sess)
	if len(warnings) > 0 {
		view["warnings"] = warnings
	}
	view["suggested_mapping"] = service.SuggestMapping(sess.Headers)

	c.JSON(http.StatusOK, view)
}

// List returns all import sessions for the current operator
func (h *ImportHandler) List(c *gin.Context) {
	operator := middleware.GetOperator(c)
	sessions := h.pipeline.List(operator)

	// Summary view only; headers and mapping come with Get
	result := make([]gin.H, len(sessions))
	for i, sess := range sessions {
		result[i] = gin.H{
			"id":         sess.ID,
			"filename":   sess.Filename,
			"stage":      sess.Stage,
			"row_count":  sess.RowCount(),
			"created_at": sess.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			"updated_at": sess.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	c.JSON(http.StatusOK, gin.H{"imports": result})
}

// Get returns a single import session
func (h *ImportHandler) Get(c *gin.Context) {
	operator := middleware.GetOperator(c)
	id := c.Param("id")

	sess, err := h.pipeline.Get(id, operator)
	if err != nil {
		respondError(c, err)
		return
	}

	view := sessionView(sess)
	if url := h.pipeline.FileURL(c.Request.Context(), sess); url != "" {
		view["file_url"] = url
	}

	c.JSON(http.StatusOK, view)
}

// SetMapping replaces the session's column mapping
func (h *ImportHandler) SetMapping(c *gin.Context) {
	operator := middleware.GetOperator(c)
	id := c.Param("id")

	var req struct {
		Mapping map[string]string `json:"mapping"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Mapping == nil {
		req.Mapping = map[string]string{}
	}

	sess, err := h.pipeline.SetMapping(c.Request.Context(), id, operator, req.Mapping)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionView(sess))
}

// Validate runs the validation rules over the session's rows
func (h *ImportHandler) Validate(c *gin.Context) {
	operator := middleware.GetOperator(c)
	id := c.Param("id")

	sess, rowErrs, err := h.pipeline.Validate(c.Request.Context(), id, operator)
	if err != nil {
		respondError(c, err)
		return
	}
	if rowErrs == nil {
		rowErrs = []model.RowError{}
	}

	c.JSON(http.StatusOK, gin.H{
		"stage":  sess.Stage,
		"valid":  len(rowErrs) == 0,
		"errors": rowErrs,
	})
}

// Preview returns the first mapped rows as they would be imported
func (h *ImportHandler) Preview(c *gin.Context) {
	operator := middleware.GetOperator(c)
	id := c.Param("id")

	sess, rows, err := h.pipeline.Preview(id, operator)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rows":       rows,
		"showing":    len(rows),
		"total_rows": sess.RowCount(),
		"mapping":    sess.Mapping,
	})
}

// Back returns a session from review to the map stage
func (h *ImportHandler) Back(c *gin.Context) {
	operator := middleware.GetOperator(c)
	id := c.Param("id")

	sess, err := h.pipeline.Back(c.Request.Context(), id, operator)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionView(sess))
}

// Submit forwards the reviewed file to the core banking API
func (h *ImportHandler) Submit(c *gin.Context) {
	operator := middleware.GetOperator(c)
	id := c.Param("id")

	sess, err := h.pipeline.Submit(c.Request.Context(), id, operator)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionView(sess))
}

// Reset discards the session's data and returns it to the upload stage
func (h *ImportHandler) Reset(c *gin.Context) {
	operator := middleware.GetOperator(c)
	id := c.Param("id")

	sess, err := h.pipeline.Reset(c.Request.Context(), id, operator)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionView(sess))
}

// Delete removes an import session
func (h *ImportHandler) Delete(c *gin.Context) {
	operator := middleware.GetOperator(c)
	id := c.Param("id")

	if err := h.pipeline.Delete(c.Request.Context(), id, operator); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Import session deleted"})
}

// Fields returns the customer field catalog the UI maps columns onto
func (h *ImportHandler) Fields(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"fields": model.Fields()})
}

// readUpload pulls the CSV out of the multipart form. On failure it
// writes the error response and returns ok=false.
func (h *ImportHandler) readUpload(c *gin.Context) (string, []byte, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return "", nil, false
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only CSV files are allowed"})
		return "", nil, false
	}

	if header.Size > int64(h.upload.MaxFileSizeMB)<<20 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("File exceeds the %d MB limit", h.upload.MaxFileSizeMB),
		})
		return "", nil, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return "", nil, false
	}

	return header.Filename, data, true
}

// sessionView is the JSON shape shared by every handler that returns
// a session.
func sessionView(sess *model.ImportSession) gin.H {
	view := gin.H{
		"id":         sess.ID,
		"filename":   sess.Filename,
		"stage":      sess.Stage,
		"headers":    sess.Headers,
		"row_count":  sess.RowCount(),
		"mapping":    sess.Mapping,
		"created_at": sess.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		"updated_at": sess.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if len(sess.Errors) > 0 {
		view["errors"] = sess.Errors
	}
	if sess.Result != nil {
		view["result"] = resultView(sess.Result)
	}
	return view
}

func resultView(res *model.ImportResult) gin.H {
	view := gin.H{
		"imported":    res.Imported,
		"failed":      res.Failed,
		"error_count": len(res.Errors),
	}
	errs := res.Errors
	if len(errs) > maxResultErrors {
		errs = errs[:maxResultErrors]
	}
	if len(errs) > 0 {
		view["errors"] = errs
	}
	if res.Anomaly != "" {
		view["anomaly"] = res.Anomaly
	}
	return view
}

// respondError maps pipeline errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Import session not found"})
	case errors.Is(err, service.ErrParseFailed),
		errors.Is(err, service.ErrUnknownField),
		errors.Is(err, service.ErrUnknownColumn):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSubmitInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "A submission is already in progress"})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSubmitFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Submission failed. Please try again."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
