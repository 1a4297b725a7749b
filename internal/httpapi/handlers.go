package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/lexgrove/lexrag/internal/docstore"
	"github.com/lexgrove/lexrag/internal/rag"
)

// DocumentResponse is the API shape of a document record.
type DocumentResponse struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	FileType     string `json:"file_type"`
	DocType      string `json:"doc_type,omitempty"`
	Status       string `json:"status"`
	StatusReason string `json:"status_reason,omitempty"`
	Summary      string `json:"summary,omitempty"`
	PageCount    int    `json:"page_count,omitempty"`
	ChunkCount   int    `json:"chunk_count"`
	SizeBytes    int64  `json:"size_bytes"`
	Degraded     bool   `json:"degraded,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// QueryRequest is the request body for POST /v1/query.
type QueryRequest struct {
	Question   string `json:"question"`
	DocumentID string `json:"document_id,omitempty"`
	TopK       int    `json:"top_k,omitempty"`
}

// CitationResponse is the API shape of a citation.
type CitationResponse struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	ChunkIndex int     `json:"chunk_index"`
	Section    string  `json:"section,omitempty"`
	Snippet    string  `json:"snippet"`
	Score      float32 `json:"score"`
}

// QueryResponse is the response body for POST /v1/query.
type QueryResponse struct {
	Answer        string             `json:"answer"`
	Confidence    float32            `json:"confidence"`
	Disclaimer    string             `json:"disclaimer"`
	NoInformation bool               `json:"no_information"`
	Citations     []CitationResponse `json:"citations"`
	Provider      string             `json:"provider"`
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func toDocumentResponse(doc *docstore.Document) DocumentResponse {
	return DocumentResponse{
		ID:           doc.ID,
		Filename:     doc.Filename,
		FileType:     doc.FileType,
		DocType:      doc.DocType,
		Status:       string(doc.Status),
		StatusReason: doc.StatusReason,
		Summary:      doc.Summary,
		PageCount:    doc.PageCount,
		ChunkCount:   doc.ChunkCount,
		SizeBytes:    doc.SizeBytes,
		Degraded:     doc.Degraded,
		CreatedAt:    doc.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    doc.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func ownerID(c echo.Context) (string, error) {
	owner := strings.TrimSpace(c.Request().Header.Get(ownerHeader))
	if owner == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, ownerHeader+" header is required")
	}
	return owner, nil
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleUpload accepts a multipart document upload, registers it and kicks
// off processing in the background. The response is 202 with the pending
// record; callers poll GET /v1/documents/:id for the outcome.
func (s *Server) handleUpload(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}
	if fileHeader.Size > s.config.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "document exceeds upload limit")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.config.MaxUploadBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	if int64(len(data)) > s.config.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "document exceeds upload limit")
	}

	fileType := c.FormValue("file_type")
	if fileType == "" {
		fileType = strings.TrimPrefix(filepath.Ext(fileHeader.Filename), ".")
	}

	doc, err := s.pipeline.Ingest(c.Request().Context(), rag.IngestRequest{
		OwnerID:  owner,
		Filename: fileHeader.Filename,
		FileType: fileType,
		DocType:  c.FormValue("doc_type"),
		Data:     data,
	})
	if err != nil {
		switch {
		case errors.Is(err, rag.ErrEmptyDocument):
			return echo.NewHTTPError(http.StatusBadRequest, "document is empty")
		default:
			s.logger.Error("document registration failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to register document")
		}
	}

	// Processing is fire and forget; the document record carries the
	// outcome. The request context dies with the response, so the
	// background work gets its own.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := s.pipeline.Process(ctx, doc.ID); err != nil {
			s.logger.Warn("background processing failed",
				zap.String("document_id", doc.ID),
				zap.Error(err))
		}
	}()

	return c.JSON(http.StatusAccepted, toDocumentResponse(doc))
}

func (s *Server) handleListDocuments(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}

	opts := docstore.ListOptions{OwnerID: owner}
	if status := c.QueryParam("status"); status != "" {
		opts.Status = docstore.Status(status)
		if !opts.Status.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown status filter")
		}
	}

	docs, err := s.store.ListDocuments(c.Request().Context(), opts)
	if err != nil {
		s.logger.Error("listing documents failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list documents")
	}

	out := make([]DocumentResponse, len(docs))
	for i := range docs {
		out[i] = toDocumentResponse(&docs[i])
	}
	return c.JSON(http.StatusOK, out)
}

// getOwnedDocument loads a document and enforces owner isolation. A
// document belonging to someone else is indistinguishable from a missing
// one.
func (s *Server) getOwnedDocument(c echo.Context, owner string) (*docstore.Document, error) {
	doc, err := s.store.GetDocument(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "document not found")
		}
		s.logger.Error("loading document failed", zap.Error(err))
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load document")
	}
	if doc.OwnerID != owner {
		return nil, echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	return doc, nil
}

func (s *Server) handleGetDocument(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	doc, err := s.getOwnedDocument(c, owner)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDocumentResponse(doc))
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	doc, err := s.getOwnedDocument(c, owner)
	if err != nil {
		return err
	}

	if err := s.pipeline.DeleteDocument(c.Request().Context(), doc.ID); err != nil {
		s.logger.Error("deleting document failed",
			zap.String("document_id", doc.ID),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete document")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleQuery(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}

	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	if len(req.Question) > s.config.MaxQuestionChars {
		return echo.NewHTTPError(http.StatusBadRequest, "question exceeds length limit")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.QueryTimeout)
	defer cancel()

	result, err := s.pipeline.Query(ctx, rag.QueryRequest{
		OwnerID:    owner,
		DocumentID: req.DocumentID,
		Question:   req.Question,
		TopK:       req.TopK,
	})
	if err != nil {
		switch {
		case errors.Is(err, rag.ErrQuestionRequired):
			return echo.NewHTTPError(http.StatusBadRequest, "question is required")
		case errors.Is(err, context.DeadlineExceeded):
			return echo.NewHTTPError(http.StatusGatewayTimeout, "query timed out")
		default:
			s.logger.Error("query failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
		}
	}

	citations := make([]CitationResponse, len(result.Citations))
	for i, cit := range result.Citations {
		citations[i] = CitationResponse{
			DocumentID: cit.DocumentID,
			ChunkID:    cit.ChunkID,
			ChunkIndex: cit.ChunkIndex,
			Section:    cit.Section,
			Snippet:    cit.Snippet,
			Score:      cit.Score,
		}
	}
	return c.JSON(http.StatusOK, QueryResponse{
		Answer:        result.Answer,
		Confidence:    result.Confidence,
		Disclaimer:    result.Disclaimer,
		NoInformation: result.NoInformation,
		Citations:     citations,
		Provider:      result.Provider,
	})
}

// QueryRecordResponse is the API shape of a stored query exchange.
type QueryRecordResponse struct {
	ID             string  `json:"id"`
	DocumentID     string  `json:"document_id,omitempty"`
	Question       string  `json:"question"`
	Answer         string  `json:"answer"`
	Confidence     float32 `json:"confidence"`
	Provider       string  `json:"provider"`
	DurationMillis int64   `json:"duration_ms"`
	Feedback       string  `json:"feedback,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

func (s *Server) handleListQueries(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}

	opts := docstore.QueryListOptions{OwnerID: owner, Limit: 50}
	if since := c.QueryParam("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be RFC 3339")
		}
		opts.Since = t
	}
	if until := c.QueryParam("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "until must be RFC 3339")
		}
		opts.Until = t
	}

	records, err := s.store.ListQueryRecords(c.Request().Context(), opts)
	if err != nil {
		s.logger.Error("listing queries failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list queries")
	}

	out := make([]QueryRecordResponse, len(records))
	for i, r := range records {
		out[i] = QueryRecordResponse{
			ID:             r.ID,
			DocumentID:     r.DocumentID,
			Question:       r.Question,
			Answer:         r.Answer,
			Confidence:     r.Confidence,
			Provider:       r.Provider,
			DurationMillis: r.DurationMillis,
			Feedback:       r.Feedback,
			CreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return c.JSON(http.StatusOK, out)
}

// FeedbackRequest is the request body for POST /v1/queries/:id/feedback.
type FeedbackRequest struct {
	Feedback string `json:"feedback"`
}

func (s *Server) handleQueryFeedback(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}

	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	err = s.store.SetQueryFeedback(c.Request().Context(), owner, c.Param("id"), req.Feedback)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "query not found")
		}
		s.logger.Error("updating query feedback failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update feedback")
	}
	return c.NoContent(http.StatusNoContent)
}
