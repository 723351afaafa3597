package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
)

type healthStoreFake struct {
	pingErr error
}

func (f *healthStoreFake) Create(context.Context, *domain.Document) error { return nil }
func (f *healthStoreFake) GetByID(context.Context, int64) (*domain.Document, error) {
	return nil, domain.ErrDocumentNotFound
}
func (f *healthStoreFake) List(context.Context) ([]*domain.Document, error) { return nil, nil }
func (f *healthStoreFake) UpdateStatus(context.Context, int64, domain.DocumentStatus) error {
	return nil
}
func (f *healthStoreFake) ClaimForProcessing(context.Context, int64, []domain.DocumentStatus) (bool, error) {
	return false, nil
}
func (f *healthStoreFake) Delete(context.Context, int64) error { return nil }
func (f *healthStoreFake) Ping(context.Context) error          { return f.pingErr }

type healthVectorFake struct {
	liveErr   error
	exists    bool
	existsErr error
}

func (f *healthVectorFake) UpsertChunks(context.Context, []domain.ChunkPoint) error { return nil }
func (f *healthVectorFake) DeleteByDocument(context.Context, int64) error           { return nil }
func (f *healthVectorFake) Search(context.Context, []float32, int, domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	return nil, nil
}
func (f *healthVectorFake) Live(context.Context) error { return f.liveErr }
func (f *healthVectorFake) CollectionExists(context.Context) (bool, error) {
	return f.exists, f.existsErr
}

type healthModelsFake struct {
	models []string
	err    error
}

func (f *healthModelsFake) ListModels(context.Context) ([]string, error) {
	return f.models, f.err
}

func TestHealthGateDecisionTable(t *testing.T) {
	down := errors.New("connection refused")
	required := []string{"nomic-embed-text", "llama3.1:8b"}
	allModels := []string{"nomic-embed-text", "llama3.1:8b"}
	embedOnly := []string{"nomic-embed-text"}

	cases := []struct {
		name       string
		store      *healthStoreFake
		vector     *healthVectorFake
		models     *healthModelsFake
		overall    string
		canProceed bool
	}{
		{
			name:       "all healthy",
			store:      &healthStoreFake{},
			vector:     &healthVectorFake{exists: true},
			models:     &healthModelsFake{models: allModels},
			overall:    domain.OverallHealthy,
			canProceed: true,
		},
		{
			name:       "collection missing, provider healthy",
			store:      &healthStoreFake{},
			vector:     &healthVectorFake{exists: false},
			models:     &healthModelsFake{models: allModels},
			overall:    domain.OverallReady,
			canProceed: true,
		},
		{
			name:       "collection missing, models missing",
			store:      &healthStoreFake{},
			vector:     &healthVectorFake{exists: false},
			models:     &healthModelsFake{models: embedOnly},
			overall:    domain.OverallReady,
			canProceed: true,
		},
		{
			name:       "collection healthy, models missing",
			store:      &healthStoreFake{},
			vector:     &healthVectorFake{exists: true},
			models:     &healthModelsFake{models: embedOnly},
			overall:    domain.OverallReady,
			canProceed: true,
		},
		{
			name:       "database unhealthy",
			store:      &healthStoreFake{pingErr: down},
			vector:     &healthVectorFake{exists: true},
			models:     &healthModelsFake{models: allModels},
			overall:    domain.OverallUnhealthy,
			canProceed: false,
		},
		{
			name:       "vector index unhealthy",
			store:      &healthStoreFake{},
			vector:     &healthVectorFake{liveErr: down, existsErr: down},
			models:     &healthModelsFake{models: allModels},
			overall:    domain.OverallUnhealthy,
			canProceed: false,
		},
		{
			name:       "provider unreachable",
			store:      &healthStoreFake{},
			vector:     &healthVectorFake{exists: true},
			models:     &healthModelsFake{err: down},
			overall:    domain.OverallUnhealthy,
			canProceed: false,
		},
		{
			name:       "collection missing and provider unreachable",
			store:      &healthStoreFake{},
			vector:     &healthVectorFake{exists: false},
			models:     &healthModelsFake{err: down},
			overall:    domain.OverallUnhealthy,
			canProceed: false,
		},
		{
			name:       "collection check error",
			store:      &healthStoreFake{},
			vector:     &healthVectorFake{exists: false, existsErr: down},
			models:     &healthModelsFake{models: allModels},
			overall:    domain.OverallUnhealthy,
			canProceed: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate := NewHealthGate(tc.store, tc.vector, tc.models, required)
			report := gate.Check(context.Background())

			if report.CanProcess != tc.canProceed {
				t.Fatalf("CanProcess = %v, want %v (services: %+v)", report.CanProcess, tc.canProceed, report.Services)
			}
			if report.Overall != tc.overall {
				t.Fatalf("Overall = %q, want %q", report.Overall, tc.overall)
			}
			if len(report.Services) != 4 {
				t.Fatalf("expected 4 service checks, got %d", len(report.Services))
			}
		})
	}
}

func TestHealthGateReportsMissingModelNames(t *testing.T) {
	gate := NewHealthGate(
		&healthStoreFake{},
		&healthVectorFake{exists: true},
		&healthModelsFake{models: []string{"nomic-embed-text"}},
		[]string{"nomic-embed-text", "llama3.1:8b"},
	)

	report := gate.Check(context.Background())
	check := report.Services[serviceModels]
	if check.Status != domain.ServiceMissingModels {
		t.Fatalf("expected missing_models status, got %s", check.Status)
	}
	if len(check.MissingModels) != 1 || check.MissingModels[0] != "llama3.1:8b" {
		t.Fatalf("unexpected missing models: %v", check.MissingModels)
	}
}
