package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	ErrBlobNotFound     = errors.New("blob not found")
	ErrInvalidExtension = errors.New("only .pdf files are accepted")
	ErrNotPDF           = errors.New("file is not a PDF document")
	ErrInvalidName      = errors.New("invalid blob name")
)

// pdfMagic is the header every PDF file starts with.
var pdfMagic = []byte("%PDF-")

var blobNamePattern = regexp.MustCompile(`^[0-9a-f]{32}\.pdf$`)

// BlobStore names and stores uploaded PDFs. Internal names are random and
// independent of the user-supplied filename.
type BlobStore struct {
	backend Backend
}

// NewBlobStore wraps a storage backend.
func NewBlobStore(backend Backend) *BlobStore {
	return &BlobStore{backend: backend}
}

// Init prepares the backend (directory or bucket).
func (b *BlobStore) Init(ctx context.Context) error {
	return b.backend.Init(ctx)
}

// Store validates and writes a blob, returning its internal name and the
// number of bytes written. originalName is only inspected for its extension.
func (b *BlobStore) Store(ctx context.Context, data io.Reader, size int64, originalName string) (string, int64, error) {
	if !HasPDFExtension(originalName) {
		return "", 0, ErrInvalidExtension
	}

	head := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(data, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", 0, fmt.Errorf("failed to read upload: %w", err)
	}
	if !bytes.Equal(head[:n], pdfMagic) {
		return "", 0, ErrNotPDF
	}

	name, err := NewBlobName()
	if err != nil {
		return "", 0, err
	}

	written, err := b.backend.Save(ctx, name, io.MultiReader(bytes.NewReader(head), data), size)
	if err != nil {
		return "", 0, err
	}
	return name, written, nil
}

// Size returns the stored size of a blob.
func (b *BlobStore) Size(ctx context.Context, name string) (int64, error) {
	if !ValidBlobName(name) {
		return 0, ErrInvalidName
	}
	return b.backend.Stat(ctx, name)
}

// Retrieve opens a blob for reading.
func (b *BlobStore) Retrieve(ctx context.Context, name string) (io.ReadSeekCloser, error) {
	if !ValidBlobName(name) {
		return nil, ErrInvalidName
	}
	return b.backend.Open(ctx, name)
}

// Remove deletes a blob.
func (b *BlobStore) Remove(ctx context.Context, name string) error {
	if !ValidBlobName(name) {
		return ErrInvalidName
	}
	return b.backend.Delete(ctx, name)
}

// NewBlobName returns 128 random bits, hex encoded, with a .pdf suffix.
func NewBlobName() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("crypto/rand failure: %w", err)
	}
	return hex.EncodeToString(buf) + ".pdf", nil
}

// ValidBlobName reports whether name has the shape produced by NewBlobName.
func ValidBlobName(name string) bool {
	return blobNamePattern.MatchString(name)
}

// HasPDFExtension checks the extension of a user-supplied filename,
// normalising Windows separators first.
func HasPDFExtension(name string) bool {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// HasPDFMagic reports whether data starts with the PDF header.
func HasPDFMagic(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}
