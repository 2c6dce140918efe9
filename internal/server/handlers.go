package server

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/api"
	"github.com/kapu/review-dashboard/internal/service/assistant"
	"github.com/kapu/review-dashboard/internal/service/session"
	"github.com/kapu/review-dashboard/internal/util"
)

// MissingColumnsResponse is the 400 body for a CSV without the required columns.
type MissingColumnsResponse struct {
	Error            string   `json:"error"`
	AvailableColumns []string `json:"available_columns"`
}

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes+1<<20)

	file, err := c.FormFile(api.FileField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.rejectUpload(c, http.StatusRequestEntityTooLarge, "bad_request", s.tooLargeMessage())
			return
		}
		s.rejectUpload(c, http.StatusBadRequest, "bad_request", "No file uploaded")
		return
	}
	if file.Filename == "" {
		s.rejectUpload(c, http.StatusBadRequest, "bad_request", "No selected file")
		return
	}
	if file.Size > s.cfg.MaxUploadBytes {
		s.rejectUpload(c, http.StatusRequestEntityTooLarge, "bad_request", s.tooLargeMessage())
		return
	}

	now := s.now()
	path := filepath.Join(s.cfg.UploadDir, fmt.Sprintf("%s_%s", now.Format("20060102_150405"), util.SafeFilename(file.Filename)))
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		s.internalError(c, "Failed to create upload directory", err)
		return
	}
	if err := c.SaveUploadedFile(file, path); err != nil {
		s.internalError(c, "Failed to save upload", err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.internalError(c, "Failed to open saved upload", err)
		return
	}
	defer f.Close()

	start := time.Now()
	result, err := s.analyzer.Analyze(c.Request.Context(), f)
	s.metrics.analysisSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		s.analysisFailed(c, err)
		return
	}
	s.metrics.reviewsAnalyzed.Add(float64(result.Reviews))

	sessionID := s.sessionID(c)
	saveErr := s.sessions.Save(c.Request.Context(), sessionID, session.Context{
		FileName:    file.Filename,
		ReviewsText: result.ReviewsText,
		UploadedAt:  now,
	})
	if saveErr != nil {
		s.logger.Warn("Failed to save chat context", zap.String("session", sessionID), zap.Error(saveErr))
	}

	s.logger.Info("Upload analysed",
		zap.String("file", file.Filename),
		zap.String("saved_as", path),
		zap.Int("reviews", result.Reviews),
	)
	s.metrics.uploads.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, result.Payload)
}

func (s *Server) tooLargeMessage() string {
	return "File size must be less than " + util.FormatSize(s.cfg.MaxUploadBytes)
}

func (s *Server) analysisFailed(c *gin.Context, err error) {
	var missing *analysis.MissingColumnsError
	if stderrors.As(err, &missing) {
		s.metrics.uploads.WithLabelValues("missing_columns").Inc()
		c.JSON(http.StatusBadRequest, MissingColumnsResponse{
			Error:            missing.Error(),
			AvailableColumns: missing.Available,
		})
		return
	}

	var parseErr *csv.ParseError
	switch {
	case stderrors.As(err, &parseErr):
		s.rejectUpload(c, http.StatusBadRequest, "bad_request", "Failed to read CSV: "+parseErr.Error())
		return
	case stderrors.Is(err, analysis.ErrEmptyCSV):
		s.rejectUpload(c, http.StatusBadRequest, "bad_request", "Failed to read CSV: "+err.Error())
		return
	}

	s.internalError(c, "Analysis failed", err)
}

func (s *Server) rejectUpload(c *gin.Context, status int, outcome, message string) {
	s.metrics.uploads.WithLabelValues(outcome).Inc()
	c.JSON(status, api.ErrorResponse{Error: message})
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.logger.Error(msg, zap.Error(err))
	s.metrics.uploads.WithLabelValues("error").Inc()
	c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Internal server error"})
}

// sessionID returns the caller's session, issuing a new cookie when absent.
func (s *Server) sessionID(c *gin.Context) string {
	if id, err := c.Cookie(SessionCookie); err == nil && id != "" {
		return id
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, id, int(s.cfg.SessionTTL.Seconds()), "/", "", false, true)
	return id
}

func (s *Server) handleChat(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	reviewsText := ""
	if id, err := c.Cookie(SessionCookie); err == nil && id != "" {
		stored, loadErr := s.sessions.Load(c.Request.Context(), id)
		if loadErr != nil {
			s.logger.Warn("Failed to load chat context", zap.String("session", id), zap.Error(loadErr))
		} else if stored != nil {
			reviewsText = stored.ReviewsText
		}
	}

	if reviewsText == "" {
		s.metrics.chats.WithLabelValues("no_context").Inc()
		c.JSON(http.StatusOK, api.ChatResponse{Answer: assistant.NoContextAnswer})
		return
	}
	if s.assistant == nil {
		s.metrics.chats.WithLabelValues("failed").Inc()
		c.JSON(http.StatusOK, api.ChatResponse{Answer: assistant.FailureAnswer})
		return
	}

	answer, err := s.assistant.Answer(c.Request.Context(), reviewsText, req.Question)
	if err != nil {
		s.logger.Error("Assistant failed", zap.Error(err))
		s.metrics.chats.WithLabelValues("failed").Inc()
		c.JSON(http.StatusOK, api.ChatResponse{Answer: assistant.FailureAnswer})
		return
	}
	s.metrics.chats.WithLabelValues("answered").Inc()
	c.JSON(http.StatusOK, api.ChatResponse{Answer: answer})
}
