package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, uuid, title, department").
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 404)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansStatus(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "uuid", "title", "department", "division", "location", "status", "created_at", "updated_at",
	}).AddRow(int64(7), "doc-uuid", "handbook.pdf", "hr", "ops", "doc-uuid.pdf", "chunked", now, now)

	mock.ExpectQuery("SELECT id, uuid, title, department").
		WithArgs(int64(7)).
		WillReturnRows(rows)

	doc, err := repo.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Status != domain.StatusChunked {
		t.Fatalf("status = %s, want %s", doc.Status, domain.StatusChunked)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateAssignsReturnedID(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs("doc-uuid", "handbook.pdf", "hr", "ops", "doc-uuid.pdf", "pending", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	doc := &domain.Document{
		UUID:       "doc-uuid",
		Title:      "handbook.pdf",
		Department: "hr",
		Division:   "ops",
		Location:   "doc-uuid.pdf",
		Status:     domain.StatusPending,
	}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if doc.ID != 42 {
		t.Fatalf("id = %d, want 42", doc.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListScansAllRows(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "uuid", "title", "department", "division", "location", "status", "created_at", "updated_at",
	}).
		AddRow(int64(2), "uuid-2", "later.pdf", "hr", "ops", "uuid-2.pdf", "completed", now, now).
		AddRow(int64(1), "uuid-1", "earlier.txt", "", "", "uuid-1.txt", "pending", now, now)

	mock.ExpectQuery("SELECT id, uuid, title, department").
		WillReturnRows(rows)

	docs, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
	if docs[0].ID != 2 || docs[0].Status != domain.StatusCompleted {
		t.Fatalf("first doc = %+v, want id 2 completed", docs[0])
	}
	if docs[1].Status != domain.StatusPending {
		t.Fatalf("second doc status = %s, want %s", docs[1].Status, domain.StatusPending)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs(int64(404), string(domain.StatusProcessing), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), 404, domain.StatusProcessing)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClaimForProcessingCompareAndSwap(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	allowed := []domain.DocumentStatus{domain.StatusPending, domain.StatusError, domain.StatusChunked}

	mock.ExpectExec("UPDATE documents").
		WithArgs(int64(7), "processing", sqlmock.AnyArg(), "{pending,error,chunked}").
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.ClaimForProcessing(context.Background(), 7, allowed)
	if err != nil {
		t.Fatalf("ClaimForProcessing() error = %v", err)
	}
	if !claimed {
		t.Fatalf("expected claim to succeed")
	}

	mock.ExpectExec("UPDATE documents").
		WithArgs(int64(7), "processing", sqlmock.AnyArg(), "{pending,error,chunked}").
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err = repo.ClaimForProcessing(context.Background(), 7, allowed)
	if err != nil {
		t.Fatalf("ClaimForProcessing() error = %v", err)
	}
	if claimed {
		t.Fatalf("claim must fail when no row matches the allowed statuses")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM documents").
		WithArgs(int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 404)
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
