// Package api talks to the analysis service's upload and chat endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/upload"
	"github.com/kapu/review-dashboard/pkg/errors"
	"go.uber.org/zap"
)

const (
	UploadPath = "/api/upload"
	ChatPath   = "/api/chat"

	// FileField is the multipart field carrying the CSV.
	FileField = "file"
)

type ChatRequest struct {
	Question string `json:"question"`
}

type ChatResponse struct {
	Answer string `json:"answer"`
}

// ErrorResponse is the JSON error body of a non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for baseURL. The cookie jar keeps the service
// session so chat questions see the last uploaded file.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		logger: logger,
	}
}

// Upload submits the selected file and decodes the analysis payload.
func (c *Client) Upload(ctx context.Context, sel *upload.Selection) (*analysis.Payload, error) {
	rc, err := sel.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(FileField, sel.Name)
	if err != nil {
		return nil, errors.NewTransportError("failed to build upload", c.baseURL+UploadPath, err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		return nil, errors.NewTransportError("failed to read selected file", c.baseURL+UploadPath, err)
	}
	if err := w.Close(); err != nil {
		return nil, errors.NewTransportError("failed to build upload", c.baseURL+UploadPath, err)
	}

	raw, err := c.doRequest(ctx, http.MethodPost, UploadPath, w.FormDataContentType(), &body)
	if err != nil {
		c.logger.Error("Upload failed", zap.String("file", sel.Name), zap.Error(err))
		return nil, err
	}

	payload, err := analysis.Decode(raw)
	if err != nil {
		return nil, errors.NewContractError("invalid JSON in upload response", "body", err)
	}
	c.logger.Debug("Upload analyzed", zap.String("file", sel.Name), zap.Int("bytes", len(raw)))
	return payload, nil
}

// Chat asks one question about the uploaded reviews.
func (c *Client) Chat(ctx context.Context, question string) (string, error) {
	reqBody, err := json.Marshal(ChatRequest{Question: question})
	if err != nil {
		return "", errors.NewContractError("failed to marshal chat request", "question", err)
	}

	raw, err := c.doRequest(ctx, http.MethodPost, ChatPath, "application/json", bytes.NewReader(reqBody))
	if err != nil {
		c.logger.Error("Chat request failed", zap.Error(err))
		return "", err
	}

	var resp ChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", errors.NewContractError("invalid JSON in chat response", "answer", err)
	}
	return resp.Answer, nil
}

func (c *Client) doRequest(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.NewTransportError("failed to create request", url, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransportError("request failed", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransportError("failed to read response", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.NewServerError(resp.StatusCode, errorText(raw, resp.Status), url)
	}
	return raw, nil
}

// errorText extracts {error} from a JSON body, falling back to the plain text.
func errorText(raw []byte, status string) string {
	var e ErrorResponse
	if err := json.Unmarshal(raw, &e); err == nil && e.Error != "" {
		return e.Error
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return status
}
