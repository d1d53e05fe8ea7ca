// Package handler provides HTTP handlers for the document QA service.
package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/anaya/internal/docqa/biz"
	"github.com/kart-io/anaya/internal/model"
)

// queryTimeout bounds end-to-end answering, including LLM calls.
const queryTimeout = 60 * time.Second

// DocQAHandler handles document QA HTTP requests.
type DocQAHandler struct {
	service *biz.Service
}

// NewDocQAHandler creates a new DocQAHandler.
func NewDocQAHandler(service *biz.Service) *DocQAHandler {
	return &DocQAHandler{service: service}
}

// SuccessResponse is a standard success response.
type SuccessResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// UploadResult is the per-document outcome of a batch upload.
type UploadResult struct {
	Document *model.Document `json:"document,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Upload ingests one or more uploaded PDF documents (multipart form,
// field name "files"). A failing document does not abort its siblings.
func (h *DocQAHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: "invalid multipart form: " + err.Error()})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: "no files uploaded; use multipart field 'files'"})
		return
	}

	uploads := make([]*biz.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: "failed to open upload " + fh.Filename + ": " + err.Error()})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: "failed to read upload " + fh.Filename + ": " + err.Error()})
			return
		}
		uploads = append(uploads, &biz.Upload{Name: fh.Filename, Data: data})
	}

	docs, errs := h.service.UploadDocuments(c.Request.Context(), uploads)

	results := make([]UploadResult, len(docs))
	failed := 0
	for i := range docs {
		results[i].Document = docs[i]
		if errs[i] != nil {
			results[i].Error = errs[i].Error()
			failed++
		}
	}

	status := http.StatusOK
	message := "documents ingested"
	if failed == len(docs) {
		status = http.StatusUnprocessableEntity
		message = "all documents failed to ingest"
	} else if failed > 0 {
		message = "some documents failed to ingest"
	}

	c.JSON(status, SuccessResponse{Code: 0, Message: message, Data: results})
}

// QueryRequest represents a question over the uploaded documents.
type QueryRequest struct {
	Question string `json:"question" binding:"required"`
}

// Query answers a question grounded in the indexed documents.
func (h *DocQAHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	result, err := h.service.Query(ctx, req.Question)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			c.JSON(http.StatusRequestTimeout, ErrorResponse{
				Code:    408,
				Message: "Query timeout: the request took too long to process. Please try again or simplify your question.",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: result})
}

// ListDocuments lists all known documents and their status.
func (h *DocQAHandler) ListDocuments(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: h.service.ListDocuments()})
}

// GetDocument returns a single document by id.
func (h *DocQAHandler) GetDocument(c *gin.Context) {
	doc, ok := h.service.GetDocument(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: 404, Message: "document not found"})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: doc})
}

// DeleteDocument deletes a document's collection and invalidates cached
// answers that referenced it.
func (h *DocQAHandler) DeleteDocument(c *gin.Context) {
	found, err := h.service.DeleteDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: 404, Message: "document not found"})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "document deleted"})
}

// Stats returns service statistics.
func (h *DocQAHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: stats})
}
