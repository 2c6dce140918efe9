// Package upload models the file the user picked for analysis.
package upload

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kapu/review-dashboard/pkg/errors"
)

// MaxFileSize is the largest file the picker accepts.
const MaxFileSize = 10 * 1024 * 1024

// Selection is one picked file. It is passed explicitly to the analyze call.
type Selection struct {
	Name string
	Size int64
	open func() (io.ReadCloser, error)
}

// Open returns a fresh reader over the file contents.
func (s *Selection) Open() (io.ReadCloser, error) {
	if s == nil || s.open == nil {
		return nil, errors.NewUserError("Please select a file first")
	}
	return s.open()
}

// SizeKB formats the size the way the picker reports it.
func (s *Selection) SizeKB() string {
	return fmt.Sprintf("%.1f KB", float64(s.Size)/1024)
}

// FromPath selects a CSV file on disk.
func FromPath(path string) (*Selection, error) {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return nil, errors.NewUserError("Please upload a CSV file")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewUserError(fmt.Sprintf("Cannot read %s", path)).WithCause(err)
	}
	if info.IsDir() {
		return nil, errors.NewUserError(fmt.Sprintf("%s is a directory", path))
	}
	if info.Size() > MaxFileSize {
		return nil, errors.NewUserError("File size must be less than 10MB")
	}
	return &Selection{
		Name: filepath.Base(path),
		Size: info.Size(),
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FromBytes selects in-memory content under name.
func FromBytes(name string, data []byte) *Selection {
	buf := append([]byte(nil), data...)
	return &Selection{
		Name: name,
		Size: int64(len(buf)),
		open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(buf)), nil },
	}
}

// Picker is the upload widget. It holds the last accepted selection and the
// status line shown under the file input.
type Picker struct {
	mu        sync.RWMutex
	selection *Selection
	status    string
}

func NewPicker() *Picker {
	return &Picker{}
}

// Pick validates path and makes it the current selection. A rejected file
// keeps the previous selection.
func (p *Picker) Pick(path string) (*Selection, error) {
	sel, err := FromPath(path)
	if err != nil {
		p.mu.Lock()
		p.status = err.Error()
		p.mu.Unlock()
		return nil, err
	}
	p.Set(sel)
	return sel, nil
}

func (p *Picker) Set(sel *Selection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selection = sel
	if sel == nil {
		p.status = ""
		return
	}
	p.status = fmt.Sprintf("File Selected Successfully! %s (%s)", sel.Name, sel.SizeKB())
}

// Selection returns the current selection, or nil.
func (p *Picker) Selection() *Selection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selection
}

func (p *Picker) Status() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}
