package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/api"
	"github.com/kapu/review-dashboard/internal/service/assistant"
	"github.com/kapu/review-dashboard/internal/service/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const uploadCSV = "Product Name,Brand Name,Price,Reviews\n" +
	"Phone X,Acme,199.99,Great phone and love the battery\n" +
	"Phone X,Acme,199.99,Terrible screen\n"

type fakeAnswerer struct {
	answer   string
	err      error
	contexts []string
}

func (f *fakeAnswerer) Answer(_ context.Context, reviewsText, question string) (string, error) {
	f.contexts = append(f.contexts, reviewsText)
	return f.answer, f.err
}

func newTestServer(t *testing.T, answerer Answerer) (*Server, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	srv := New(Config{UploadDir: dir, MaxUploadBytes: 1 << 20},
		analysis.NewAnalyzer(2, zap.NewNop()),
		session.NewMemoryStore(time.Hour),
		answerer,
		zap.NewNop(),
	)
	srv.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }
	return srv, dir
}

func uploadRequest(t *testing.T, name, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(api.FileField, name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, api.UploadPath, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func chatRequest(t *testing.T, question string, cookies ...*http.Cookie) *http.Request {
	t.Helper()
	raw, err := json.Marshal(api.ChatRequest{Question: question})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, api.ChatPath, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestUploadAnalysesAndSavesFile(t *testing.T) {
	srv, dir := newTestServer(t, &fakeAnswerer{})

	w := serve(srv, uploadRequest(t, "my reviews.csv", uploadCSV))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	payload, err := analysis.Decode(w.Body.Bytes())
	require.NoError(t, err)
	assert.True(t, payload.Valid())
	require.NotNil(t, payload.ProductInfo)
	assert.Equal(t, "Phone X", payload.ProductInfo.Name)
	require.NotNil(t, payload.ChartData)
	require.NotNil(t, payload.ChartData.Counts)

	_, err = os.Stat(filepath.Join(dir, "20250304_050607_my_reviews.csv"))
	assert.NoError(t, err)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
}

func TestUploadWithoutFile(t *testing.T) {
	srv, _ := newTestServer(t, &fakeAnswerer{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("other", "x"))
	require.NoError(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, api.UploadPath, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := serve(srv, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"No file uploaded"}`, w.Body.String())
}

func TestUploadMissingColumns(t *testing.T) {
	srv, _ := newTestServer(t, &fakeAnswerer{})

	w := serve(srv, uploadRequest(t, "bad.csv", "Title,Stars\nPhone,5\n"))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp MissingColumnsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Missing required columns: Reviews", resp.Error)
	assert.Equal(t, []string{"Title", "Stars"}, resp.AvailableColumns)
}

func TestUploadEmptyCSV(t *testing.T) {
	srv, _ := newTestServer(t, &fakeAnswerer{})

	w := serve(srv, uploadRequest(t, "empty.csv", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to read CSV")
}

func TestUploadTooLarge(t *testing.T) {
	srv, _ := newTestServer(t, &fakeAnswerer{})

	big := "Reviews\n" + strings.Repeat("great phone\n", 120_000)
	w := serve(srv, uploadRequest(t, "big.csv", big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.JSONEq(t, `{"error":"File size must be less than 1MB"}`, w.Body.String())
}

func TestChatWithoutUpload(t *testing.T) {
	answerer := &fakeAnswerer{answer: "unused"}
	srv, _ := newTestServer(t, answerer)

	w := serve(srv, chatRequest(t, "How is the battery?"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"answer":%q}`, assistant.NoContextAnswer), w.Body.String())
	assert.Empty(t, answerer.contexts)
}

func TestChatAfterUploadUsesSessionContext(t *testing.T) {
	answerer := &fakeAnswerer{answer: "Battery is loved."}
	srv, _ := newTestServer(t, answerer)

	up := serve(srv, uploadRequest(t, "reviews.csv", uploadCSV))
	require.Equal(t, http.StatusOK, up.Code)

	w := serve(srv, chatRequest(t, "How is the battery?", up.Result().Cookies()...))
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Battery is loved.", resp.Answer)
	require.Len(t, answerer.contexts, 1)
	assert.Contains(t, answerer.contexts[0], "Great phone and love the battery")
}

func TestChatAssistantFailure(t *testing.T) {
	answerer := &fakeAnswerer{err: fmt.Errorf("quota")}
	srv, _ := newTestServer(t, answerer)

	up := serve(srv, uploadRequest(t, "reviews.csv", uploadCSV))
	w := serve(srv, chatRequest(t, "Summary?", up.Result().Cookies()...))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), assistant.FailureAnswer)
}

func TestChatInvalidBody(t *testing.T) {
	srv, _ := newTestServer(t, &fakeAnswerer{})

	req := httptest.NewRequest(http.MethodPost, api.ChatPath, strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := serve(srv, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, assistant.New(zap.NewNop()))

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	serve(srv, uploadRequest(t, "reviews.csv", uploadCSV))
	m := serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, m.Code)
	assert.Contains(t, m.Body.String(), `review_dashboard_analyzer_uploads_total{outcome="ok"} 1`)
	assert.Contains(t, m.Body.String(), "review_dashboard_analyzer_reviews_analyzed_total 2")
}

func TestCORSPreflight(t *testing.T) {
	dir := t.TempDir()
	srv := New(Config{UploadDir: dir, AllowedOrigins: []string{"http://localhost:5173"}},
		analysis.NewAnalyzer(1, nil), session.NewMemoryStore(time.Hour), nil, nil)

	req := httptest.NewRequest(http.MethodOptions, api.UploadPath, nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := serve(srv, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
