package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/CZERTAINLY/CBOM-Repository/internal/bom"
	"github.com/CZERTAINLY/CBOM-Repository/internal/codec"
	"github.com/CZERTAINLY/CBOM-Repository/internal/details"
	"github.com/CZERTAINLY/CBOM-Repository/internal/health"
	"github.com/CZERTAINLY/CBOM-Repository/internal/log"
	"github.com/CZERTAINLY/CBOM-Repository/internal/negotiate"
	"github.com/CZERTAINLY/CBOM-Repository/internal/store"
)

var supportedMedia = []string{
	"application/vnd.cyclonedx+xml",
	"application/vnd.cyclonedx+json",
	"application/x.vnd.cyclonedx+protobuf",
}

// BomHandler dispatches /bom requests across the three verbs this
// repository serves, gated per the operator's AllowedMethods config
// (spec.md §4.5).
func (s Server) BomHandler(w http.ResponseWriter, r *http.Request) {
	var allowed []string
	if s.allowed.Get {
		allowed = append(allowed, http.MethodGet)
	}
	if s.allowed.Post {
		allowed = append(allowed, http.MethodPost)
	}
	if s.allowed.Delete {
		allowed = append(allowed, http.MethodDelete)
	}

	switch r.Method {
	case http.MethodGet:
		if !s.allowed.Get {
			break
		}
		s.Retrieve(w, r)
		return
	case http.MethodPost:
		if !s.allowed.Post {
			break
		}
		s.Upload(w, r)
		return
	case http.MethodDelete:
		if !s.allowed.Delete {
			break
		}
		s.Delete(w, r)
		return
	}

	w.Header().Set("Allow", strings.Join(allowed, ", "))
	details.MethodNotAllowed(w,
		fmt.Sprintf("Method %s not allowed for %s.", r.Method, r.URL.Path),
		allowed)
}

// Upload handles POST /bom: decodes the submitted BOM, validates its
// serial number, and persists it (spec.md §6).
func (s Server) Upload(w http.ResponseWriter, r *http.Request) {
	sel, err := negotiate.ParseContentType(r.Header.Get("Content-Type"))
	if err != nil {
		details.UnsupportedMediaType(w,
			fmt.Sprintf("Content type %q not supported.", r.Header.Get("Content-Type")),
			supportedMedia)
		return
	}

	ctx := log.ContextAttrs(r.Context(), slog.Group(
		"http-handler",
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.String("format", sel.Format.String()),
		slog.String("version", string(sel.Version)),
		slog.Int64("content-length", r.ContentLength),
	))
	slog.InfoContext(ctx, "Start.")

	data, err := io.ReadAll(r.Body)
	if err != nil {
		details.BadRequest(w, "Failed to read request body.", map[string]any{"error": err.Error()})
		return
	}

	doc, err := codec.Decode(data, sel.Format)
	if err != nil {
		details.DecodeFailure(w, "Submitted BOM could not be decoded: "+err.Error())
		return
	}

	serial := bom.SerialNumber(doc.SerialNumber)
	if err := serial.Validate(); err != nil {
		details.InvalidSerialNumber(w, fmt.Sprintf("BOM serialNumber %q is not a valid urn:uuid.", doc.SerialNumber))
		return
	}

	version, storedAt, err := s.store.Store(ctx, serial, doc.Version, sel.Format, data)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyExists):
			details.Conflict(w, "A BOM already exists for this serial number and version.",
				map[string]any{"serialNumber": serial.String(), "version": doc.Version})
		case errors.Is(err, store.ErrInvalidVersion):
			details.InvalidVersion(w, fmt.Sprintf("version %d is invalid.", doc.Version))
		default:
			details.Internal(w, "Failed to store BOM.", map[string]any{"error": err.Error()})
		}
		return
	}

	schemaVersion, err := codec.SchemaVersionOf(doc)
	if err != nil {
		schemaVersion = sel.Version
	}
	s.metadata.Observe(serial, version, storedAt, schemaVersion)

	location := fmt.Sprintf("%s?serialNumber=%s&version=%d", RouteBOM, serial.String(), version)
	w.Header().Set("Location", location)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"serialNumber": serial.String(),
		"version":      version,
	})
	slog.InfoContext(ctx, "Finished.", slog.String("serialNumber", serial.String()), slog.Int("version", version))
}

// Retrieve handles GET /bom?serialNumber=&version=&original=.
func (s Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	serial := bom.SerialNumber(q.Get("serialNumber"))
	if err := serial.Validate(); err != nil {
		details.InvalidSerialNumber(w, fmt.Sprintf("serialNumber %q is not a valid urn:uuid.", q.Get("serialNumber")))
		return
	}

	version := 0
	if raw := q.Get("version"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			details.InvalidVersion(w, fmt.Sprintf("version %q is invalid.", raw))
			return
		}
		version = v
	}

	ctx := log.ContextAttrs(r.Context(), slog.Group(
		"http-handler",
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.String("serialNumber", serial.String()),
		slog.Int("version", version),
	))
	slog.InfoContext(ctx, "Start.")

	if q.Get("original") == "true" {
		s.retrieveOriginal(ctx, w, serial, version)
		return
	}

	sel, err := negotiate.ParseAccept(r.Header.Get("Accept"))
	if err != nil {
		details.NotAcceptable(w, "No acceptable representation for the Accept header.", supportedMedia)
		return
	}

	var (
		doc      *cdx.BOM
		resolved int
	)
	if version == 0 {
		doc, resolved, err = s.store.RetrieveLatest(ctx, serial)
	} else {
		doc, err = s.store.Retrieve(ctx, serial, version)
		resolved = version
	}
	if err != nil {
		writeRetrieveErr(w, err)
		return
	}

	out, err := codec.Encode(doc, sel.Format, sel.Version)
	if err != nil {
		details.Internal(w, "Failed to encode BOM for response.", map[string]any{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", sel.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
	slog.InfoContext(ctx, "Finished.", slog.Int("version", resolved))
}

// retrieveOriginal writes back the exact bytes submitted for
// (serial, version), or the latest version's bytes if version is
// unset, so clients needing byte-identical retrieval (e.g. signature
// verification) can recover the original submission (spec.md §1).
func (s Server) retrieveOriginal(ctx context.Context, w http.ResponseWriter, serial bom.SerialNumber, version int) {
	if version == 0 {
		versions, err := s.store.List(ctx, serial)
		if err != nil || len(versions) == 0 {
			details.NotFound(w, "Requested BOM not found.")
			return
		}
		version = versions[len(versions)-1]
	}

	data, format, err := s.store.RetrieveOriginal(ctx, serial, version)
	if err != nil {
		writeRetrieveErr(w, err)
		return
	}

	w.Header().Set("Content-Type", originalContentType(data, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// originalContentType reports the stored format's canonical media type
// and, on a best-effort basis, the schema version the document was
// submitted at (falling back to an unversioned Content-Type if the
// stored bytes cannot be re-parsed, which should not happen for data
// this store itself accepted).
func originalContentType(data []byte, format bom.Format) string {
	base := map[bom.Format]string{
		bom.FormatXML:      "application/vnd.cyclonedx+xml",
		bom.FormatJSON:      "application/vnd.cyclonedx+json",
		bom.FormatProtobuf: "application/x.vnd.cyclonedx+protobuf",
	}[format]

	doc, err := codec.Decode(data, format)
	if err != nil {
		return base
	}
	sv, err := codec.SchemaVersionOf(doc)
	if err != nil {
		return base
	}
	return base + "; version=" + string(sv)
}

// Delete handles DELETE /bom?serialNumber=[&version=]. Omitting
// version deletes every version of the serial and succeeds with 204
// even when nothing matched, since the caller's desired end state (the
// entry absent) already holds. Naming an explicit version that does
// not exist is a plain not-found, reported as 404 (spec.md §6).
func (s Server) Delete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	serial := bom.SerialNumber(q.Get("serialNumber"))
	if err := serial.Validate(); err != nil {
		details.InvalidSerialNumber(w, fmt.Sprintf("serialNumber %q is not a valid urn:uuid.", q.Get("serialNumber")))
		return
	}

	ctx := log.ContextAttrs(r.Context(), slog.Group(
		"http-handler",
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.String("serialNumber", serial.String()),
	))
	slog.InfoContext(ctx, "Start.")

	if raw := q.Get("version"); raw != "" {
		v, convErr := strconv.Atoi(raw)
		if convErr != nil || v <= 0 {
			details.InvalidVersion(w, fmt.Sprintf("version %q is invalid.", raw))
			return
		}
		if err := s.store.Delete(ctx, serial, v); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				details.NotFound(w, "Requested BOM not found.")
				return
			}
			details.Internal(w, "Failed to delete BOM.", map[string]any{"error": err.Error()})
			return
		}
		if remaining, listErr := s.store.List(ctx, serial); listErr == nil && len(remaining) == 0 {
			s.metadata.Forget(serial)
		}
		w.WriteHeader(http.StatusNoContent)
		slog.InfoContext(ctx, "Finished.")
		return
	}

	if err := s.store.DeleteAll(ctx, serial); err != nil && !errors.Is(err, store.ErrNotFound) {
		details.Internal(w, "Failed to delete BOM.", map[string]any{"error": err.Error()})
		return
	}
	s.metadata.Forget(serial)

	w.WriteHeader(http.StatusNoContent)
	slog.InfoContext(ctx, "Finished.")
}

// HealthHandler handles GET /health: overall status of the service and
// its components. 503 if DOWN or OUT_OF_SERVICE, 200 otherwise.
func (s Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	healthStatus := s.healthService.CheckHealth(r.Context())

	statusCode := http.StatusOK
	if healthStatus.Status == health.StatusDown || healthStatus.Status == health.StatusOutOfService {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(healthStatus); err != nil {
		slog.ErrorContext(r.Context(), "`json.NewEncoder()` failed", slog.String("error", err.Error()))
	}
}

// LivenessHandler handles GET /health/liveness: always 200/UP
// unless the process itself is in a failed state.
func (s Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	healthStatus := s.healthService.CheckLiveness(r.Context())

	statusCode := http.StatusOK
	if healthStatus.Status != health.StatusUp {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(healthStatus); err != nil {
		slog.ErrorContext(r.Context(), "`json.NewEncoder()` failed", slog.String("error", err.Error()))
	}
}

// ReadinessHandler handles GET /health/readiness: 200 if every
// critical component is available, 503 otherwise.
func (s Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	healthStatus := s.healthService.CheckReadiness(r.Context())

	statusCode := http.StatusOK
	if healthStatus.Status != health.StatusUp {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(healthStatus); err != nil {
		slog.ErrorContext(r.Context(), "`json.NewEncoder()` failed", slog.String("error", err.Error()))
	}
}

func writeRetrieveErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		details.NotFound(w, "Requested BOM not found.")
	case errors.Is(err, store.ErrInvalidVersion):
		details.InvalidVersion(w, "version must be a positive integer.")
	default:
		details.Internal(w, "Failed to retrieve BOM.", map[string]any{"error": err.Error()})
	}
}
