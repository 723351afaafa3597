package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
	"github.com/dkovalenko/document-pipeline/internal/core/ports"
)

type ingestRepoFake struct {
	created *domain.Document
}

func (f *ingestRepoFake) Create(_ context.Context, doc *domain.Document) error {
	doc.ID = 42
	f.created = doc
	return nil
}

func (f *ingestRepoFake) GetByID(context.Context, int64) (*domain.Document, error) {
	return nil, domain.ErrDocumentNotFound
}
func (f *ingestRepoFake) List(context.Context) ([]*domain.Document, error) { return nil, nil }
func (f *ingestRepoFake) UpdateStatus(context.Context, int64, domain.DocumentStatus) error {
	return nil
}
func (f *ingestRepoFake) ClaimForProcessing(context.Context, int64, []domain.DocumentStatus) (bool, error) {
	return false, nil
}
func (f *ingestRepoFake) Delete(context.Context, int64) error { return nil }
func (f *ingestRepoFake) Ping(context.Context) error          { return nil }

type storageFake struct {
	saved map[string][]byte
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[key] = body
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f.saved[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (f *storageFake) Path(key string) string { return "/data/" + key }

type queueFake struct {
	published []int64
}

func (f *queueFake) PublishDocumentProcess(_ context.Context, documentID int64) error {
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentProcess(context.Context, func(context.Context, int64) error) error {
	return nil
}

func TestUploadStoresFileAndQueuesProcessing(t *testing.T) {
	repo := &ingestRepoFake{}
	storage := &storageFake{}
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), ports.DocumentUpload{
		Filename:   "handbook.pdf",
		Title:      "Employee handbook",
		Department: "hr",
		Division:   "ops",
		Body:       strings.NewReader("%PDF-1.7 ..."),
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if doc.Status != domain.StatusPending {
		t.Fatalf("new document status = %s, want %s", doc.Status, domain.StatusPending)
	}
	if doc.UUID == "" {
		t.Fatal("document without uuid")
	}
	if !strings.HasSuffix(doc.Location, ".pdf") {
		t.Fatalf("storage key must keep the extension, got %q", doc.Location)
	}
	if _, ok := storage.saved[doc.Location]; !ok {
		t.Fatalf("file not saved under %q", doc.Location)
	}
	if len(queue.published) != 1 || queue.published[0] != 42 {
		t.Fatalf("expected processing event for id 42, got %v", queue.published)
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	uc := NewIngestDocumentUseCase(&ingestRepoFake{}, &storageFake{}, &queueFake{})

	_, err := uc.Upload(context.Background(), ports.DocumentUpload{
		Filename: "malware.exe",
		Title:    "not a document",
		Body:     strings.NewReader("MZ"),
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUploadRequiresTitle(t *testing.T) {
	storage := &storageFake{}
	uc := NewIngestDocumentUseCase(&ingestRepoFake{}, storage, &queueFake{})

	_, err := uc.Upload(context.Background(), ports.DocumentUpload{
		Filename: "notes.txt",
		Title:    "   ",
		Body:     strings.NewReader("text"),
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(storage.saved) != 0 {
		t.Fatal("nothing may be stored for a rejected upload")
	}
}
