package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
	"github.com/dkovalenko/document-pipeline/internal/core/ports"
)

const (
	serviceDatabase   = "database"
	serviceVector     = "qdrant"
	serviceCollection = "qdrant_collection"
	serviceModels     = "ollama"
)

// HealthGate aggregates the health of every pipeline dependency into one
// go/no-go decision before any processing work is committed.
type HealthGate struct {
	store          ports.DocumentRepository
	vectors        ports.VectorIndex
	models         ports.ModelProvider
	requiredModels []string
}

func NewHealthGate(
	store ports.DocumentRepository,
	vectors ports.VectorIndex,
	models ports.ModelProvider,
	requiredModels []string,
) *HealthGate {
	return &HealthGate{
		store:          store,
		vectors:        vectors,
		models:         models,
		requiredModels: requiredModels,
	}
}

// Check runs all four dependency checks concurrently. One check failing (or
// panicking) never aborts the others; each captures its own outcome.
func (g *HealthGate) Check(ctx context.Context) domain.HealthReport {
	var dbCheck, vectorCheck, collectionCheck, modelCheck domain.ServiceCheck

	var group errgroup.Group
	group.Go(func() error {
		dbCheck = runCheck(serviceDatabase, func() domain.ServiceCheck { return g.checkDatabase(ctx) })
		return nil
	})
	group.Go(func() error {
		vectorCheck = runCheck(serviceVector, func() domain.ServiceCheck { return g.checkVectorIndex(ctx) })
		return nil
	})
	group.Go(func() error {
		collectionCheck = runCheck(serviceCollection, func() domain.ServiceCheck { return g.checkCollection(ctx) })
		return nil
	})
	group.Go(func() error {
		modelCheck = runCheck(serviceModels, func() domain.ServiceCheck { return g.checkModels(ctx) })
		return nil
	})
	_ = group.Wait()

	return decide(dbCheck, vectorCheck, collectionCheck, modelCheck)
}

func (g *HealthGate) checkDatabase(ctx context.Context) domain.ServiceCheck {
	if err := g.store.Ping(ctx); err != nil {
		return domain.ServiceCheck{Service: serviceDatabase, Status: domain.ServiceUnhealthy, Detail: err.Error()}
	}
	return domain.ServiceCheck{Service: serviceDatabase, Status: domain.ServiceHealthy}
}

func (g *HealthGate) checkVectorIndex(ctx context.Context) domain.ServiceCheck {
	if err := g.vectors.Live(ctx); err != nil {
		return domain.ServiceCheck{Service: serviceVector, Status: domain.ServiceUnhealthy, Detail: err.Error()}
	}
	return domain.ServiceCheck{Service: serviceVector, Status: domain.ServiceHealthy}
}

func (g *HealthGate) checkCollection(ctx context.Context) domain.ServiceCheck {
	exists, err := g.vectors.CollectionExists(ctx)
	if err != nil {
		return domain.ServiceCheck{Service: serviceCollection, Status: domain.ServiceUnhealthy, Detail: err.Error()}
	}
	if !exists {
		return domain.ServiceCheck{
			Service: serviceCollection,
			Status:  domain.ServiceMissing,
			Detail:  "collection not found",
		}
	}
	return domain.ServiceCheck{Service: serviceCollection, Status: domain.ServiceHealthy}
}

func (g *HealthGate) checkModels(ctx context.Context) domain.ServiceCheck {
	available, err := g.models.ListModels(ctx)
	if err != nil {
		return domain.ServiceCheck{Service: serviceModels, Status: domain.ServiceUnhealthy, Detail: err.Error()}
	}

	have := make(map[string]bool, len(available))
	for _, name := range available {
		have[name] = true
	}

	var missing []string
	for _, required := range g.requiredModels {
		if !have[required] {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return domain.ServiceCheck{
			Service:       serviceModels,
			Status:        domain.ServiceMissingModels,
			Detail:        fmt.Sprintf("missing required models: %v", missing),
			MissingModels: missing,
		}
	}
	return domain.ServiceCheck{Service: serviceModels, Status: domain.ServiceHealthy}
}

func runCheck(service string, fn func() domain.ServiceCheck) (check domain.ServiceCheck) {
	defer func() {
		if r := recover(); r != nil {
			check = domain.ServiceCheck{
				Service: service,
				Status:  domain.ServiceError,
				Detail:  fmt.Sprintf("health check panicked: %v", r),
			}
		}
	}()
	return fn()
}

// decide applies the gate policy, in precedence order:
// all healthy; missing collection that can be auto-created downstream; models
// pending a pull on an otherwise healthy stack; everything else is a refusal.
func decide(db, vector, collection, models domain.ServiceCheck) domain.HealthReport {
	allHealthy := db.Status == domain.ServiceHealthy &&
		vector.Status == domain.ServiceHealthy &&
		collection.Status == domain.ServiceHealthy &&
		models.Status == domain.ServiceHealthy

	canProceed := allHealthy

	if !canProceed &&
		db.Status == domain.ServiceHealthy &&
		vector.Status == domain.ServiceHealthy &&
		collection.Status == domain.ServiceMissing &&
		(models.Status == domain.ServiceHealthy || models.Status == domain.ServiceMissingModels) {
		canProceed = true
	}

	if !canProceed &&
		db.Status == domain.ServiceHealthy &&
		vector.Status == domain.ServiceHealthy &&
		collection.Status == domain.ServiceHealthy &&
		models.Status == domain.ServiceMissingModels {
		canProceed = true
		slog.Warn("proceeding with missing models; embedding calls may block on model download",
			"missing_models", models.MissingModels,
		)
	}

	overall := overallFor(allHealthy, canProceed)

	return domain.HealthReport{
		Overall:    overall,
		CanProcess: canProceed,
		Services: map[string]domain.ServiceCheck{
			serviceDatabase:   db,
			serviceVector:     vector,
			serviceCollection: collection,
			serviceModels:     models,
		},
		CheckedAt: time.Now().UTC(),
	}
}

func overallFor(allHealthy, canProceed bool) string {
	switch {
	case allHealthy:
		return domain.OverallHealthy
	case canProceed:
		return domain.OverallReady
	default:
		return domain.OverallUnhealthy
	}
}
