package http

import (
	"context"
	"net/http"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/gorilla/mux"

	"github.com/CZERTAINLY/CBOM-Repository/internal/bom"
	"github.com/CZERTAINLY/CBOM-Repository/internal/env"
	"github.com/CZERTAINLY/CBOM-Repository/internal/health"
)

// Store is the subset of internal/store.Store the HTTP layer depends
// on, narrowed to keep handlers.go's dependency surface explicit.
type Store interface {
	Store(ctx context.Context, serial bom.SerialNumber, version int, format bom.Format, data []byte) (int, time.Time, error)
	Retrieve(ctx context.Context, serial bom.SerialNumber, version int) (*cdx.BOM, error)
	RetrieveOriginal(ctx context.Context, serial bom.SerialNumber, version int) ([]byte, bom.Format, error)
	RetrieveLatest(ctx context.Context, serial bom.SerialNumber) (*cdx.BOM, int, error)
	List(ctx context.Context, serial bom.SerialNumber) ([]int, error)
	Delete(ctx context.Context, serial bom.SerialNumber, version int) error
	DeleteAll(ctx context.Context, serial bom.SerialNumber) error
}

// Metadata is the subset of internal/metadata.Service the HTTP layer
// uses to keep the in-memory summary current as requests land.
type Metadata interface {
	Observe(serial bom.SerialNumber, version int, storedAt time.Time, schemaVersion bom.SchemaVersion)
	Forget(serial bom.SerialNumber)
}

// Server wires the store, metadata service, and health service into
// HTTP handlers.
type Server struct {
	store         Store
	metadata      Metadata
	healthService health.Service
	allowed       env.AllowedMethods
}

// New constructs a Server.
func New(store Store, metadataSvc Metadata, healthSvc health.Service, allowed env.AllowedMethods) Server {
	return Server{
		store:         store,
		metadata:      metadataSvc,
		healthService: healthSvc,
		allowed:       allowed,
	}
}

// Router builds the gorilla/mux router exposing every endpoint this
// repository serves.
func (s Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(RouteBOM, s.BomHandler)
	r.HandleFunc(RouteHealth, s.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc(RouteHealthLive, s.LivenessHandler).Methods(http.MethodGet)
	r.HandleFunc(RouteHealthReady, s.ReadinessHandler).Methods(http.MethodGet)
	return r
}
