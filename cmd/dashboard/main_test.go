package main

import (
	"bytes"
	"context"
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
	"github.com/kapu/review-dashboard/internal/server"
	"github.com/kapu/review-dashboard/internal/service/session"
)

type fakeAnswerer struct{}

func (fakeAnswerer) Answer(_ context.Context, _, question string) (string, error) {
	return "answer to " + question, nil
}

func TestAnalyzeCommand(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := server.New(server.Config{UploadDir: t.TempDir()},
		analysis.NewAnalyzer(1, zap.NewNop()), session.NewMemoryStore(time.Hour), fakeAnswerer{}, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "reviews.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Product Name,Reviews\nPhone X,Great battery\n"), 0o644))
	htmlPath := filepath.Join(dir, "out.html")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"analyze", csvPath, "--api", ts.URL, "--log-level", "error", "--html", htmlPath, "--ask", "battery?"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Phone X")
	assert.Contains(t, out.String(), "A: answer to battery?")
	page, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(page), "Phone X")
}

func TestAnalyzeCommandResetsBetweenFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := server.New(server.Config{UploadDir: t.TempDir()},
		analysis.NewAnalyzer(1, zap.NewNop()), session.NewMemoryStore(time.Hour), fakeAnswerer{}, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	dir := t.TempDir()
	first := filepath.Join(dir, "first.csv")
	second := filepath.Join(dir, "second.csv")
	require.NoError(t, os.WriteFile(first, []byte("Product Name,Reviews\nPhone X,Great battery\n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("Reviews\nTerrible screen\n"), 0o644))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"analyze", first, second, "--api", ts.URL, "--log-level", "error"})
	require.NoError(t, cmd.Execute())

	renders := strings.Split(out.String(), "== second.csv ==")
	require.Len(t, renders, 2)
	assert.Contains(t, renders[0], "== first.csv ==")
	assert.Contains(t, renders[0], "Phone X")
	assert.NotContains(t, renders[1], "Phone X")
}

func TestAnalyzeCommandRequiresFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"analyze"})
	assert.Error(t, cmd.Execute())
}
