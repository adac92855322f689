// Package negotiate implements HTTP content negotiation across the
// three BOM wire formats and five schema versions (spec.md §4.3):
// parsing Accept/Content-Type headers, matching against the
// supported (format, version) matrix, and building the canonical
// response Content-Type.
package negotiate

import (
	"errors"
	"mime"
	"sort"
	"strconv"
	"strings"

	"github.com/CZERTAINLY/CBOM-Repository/internal/bom"
	"github.com/CZERTAINLY/CBOM-Repository/internal/codec"
)

// ErrNoAcceptableFormat is returned when none of the client's
// requested media types can be satisfied by the supported matrix.
var ErrNoAcceptableFormat = errors.New("no acceptable format/version available")

// ErrUnrecognizedMediaType is returned when a Content-Type does not
// match any known alias.
var ErrUnrecognizedMediaType = errors.New("unrecognized media type")

// DefaultFormat and DefaultVersion are used when a GET request has no
// Accept header at all (spec.md §4.3's "missing Accept" decision).
const (
	DefaultFormat  = bom.FormatXML
	DefaultVersion = bom.SchemaVersion1_4
)

// aliases maps every media type this repository understands onto the
// wire format it represents. Several CycloneDX-specific types and a
// couple of generic fallbacks alias onto the same format.
var aliases = map[string]bom.Format{
	"text/xml":                              bom.FormatXML,
	"application/xml":                       bom.FormatXML,
	"application/vnd.cyclonedx+xml":         bom.FormatXML,
	"application/json":                      bom.FormatJSON,
	"application/vnd.cyclonedx+json":        bom.FormatJSON,
	"application/x.vnd.cyclonedx+protobuf":  bom.FormatProtobuf,
	"application/vnd.cyclonedx+protobuf":    bom.FormatProtobuf,
	"application/octet-stream":              bom.FormatProtobuf,
}

// canonicalMediaType is the inverse of aliases, used to build response
// Content-Type headers.
var canonicalMediaType = map[bom.Format]string{
	bom.FormatXML:      "application/vnd.cyclonedx+xml",
	bom.FormatJSON:      "application/vnd.cyclonedx+json",
	bom.FormatProtobuf: "application/x.vnd.cyclonedx+protobuf",
}

// Selection is the outcome of negotiating a format and schema version.
type Selection struct {
	Format  bom.Format
	Version bom.SchemaVersion

	// mediaType is the exact media type string the negotiation matched
	// against (the client's alias, e.g. "text/xml", or the canonical
	// vendor type when none was given). ContentType() echoes it back
	// instead of always responding with the canonical vendor type
	// (spec.md §4.3).
	mediaType string
}

// ContentType builds the response Content-Type header value for a
// Selection, e.g. "application/vnd.cyclonedx+xml; version=1.4". If the
// client's Accept used a generic alias (e.g. "text/xml"), that alias is
// echoed back instead of the canonical vendor media type.
func (s Selection) ContentType() string {
	mt := s.mediaType
	if mt == "" {
		mt = canonicalMediaType[s.Format]
	}
	return mt + "; version=" + string(s.Version)
}

type candidate struct {
	mediaType string
	version   string
	q         float64
}

// ParseAccept negotiates a Selection from a request's Accept header,
// honoring q-value ordering (spec.md §4.3). An empty header selects
// DefaultFormat/DefaultVersion. Each candidate media type is tried in
// descending q order, and for each the requester's "version" parameter
// (if present) or else the highest schema version supported for that
// format is used; the first candidate with a populated matrix cell
// wins.
func ParseAccept(header string) (Selection, error) {
	header = strings.TrimSpace(header)
	if header == "" || header == "*/*" {
		return Selection{Format: DefaultFormat, Version: DefaultVersion, mediaType: canonicalMediaType[DefaultFormat]}, nil
	}

	candidates, err := parseCandidates(header)
	if err != nil {
		return Selection{}, err
	}

	for _, c := range candidates {
		format, ok := aliases[c.mediaType]
		if !ok {
			continue
		}
		version := c.version
		if version == "" {
			v, ok := codec.HighestSupported(format)
			if !ok {
				continue
			}
			return Selection{Format: format, Version: v, mediaType: c.mediaType}, nil
		}
		sv := bom.SchemaVersion(version)
		if codec.Supported(format, sv) {
			return Selection{Format: format, Version: sv, mediaType: c.mediaType}, nil
		}
	}
	return Selection{}, ErrNoAcceptableFormat
}

// ParseContentType negotiates a Selection from a request's
// Content-Type header (used on POST uploads). Unlike ParseAccept,
// there is no default: a missing or unrecognized Content-Type is an
// error.
func ParseContentType(header string) (Selection, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Selection{}, ErrUnrecognizedMediaType
	}

	t, params, err := mime.ParseMediaType(header)
	if err != nil {
		return Selection{}, fmtUnrecognized(header)
	}
	format, ok := aliases[t]
	if !ok {
		return Selection{}, fmtUnrecognized(header)
	}

	version := params["version"]
	if version == "" {
		v, ok := codec.HighestSupported(format)
		if !ok {
			return Selection{}, ErrNoAcceptableFormat
		}
		return Selection{Format: format, Version: v, mediaType: t}, nil
	}
	sv := bom.SchemaVersion(version)
	if !codec.Supported(format, sv) {
		return Selection{}, codecUnsupported(format, sv)
	}
	return Selection{Format: format, Version: sv, mediaType: t}, nil
}

func fmtUnrecognized(header string) error {
	return errors.Join(ErrUnrecognizedMediaType, errors.New(header))
}

func codecUnsupported(format bom.Format, version bom.SchemaVersion) error {
	return errors.Join(codec.ErrUnsupportedFormatVersion, errors.New(format.String()+"/"+string(version)))
}

// parseCandidates splits a comma-separated Accept header into
// candidates ordered by descending q-value (ties keep header order,
// matching the convention most HTTP libraries in this codebase's
// ecosystem follow).
func parseCandidates(header string) ([]candidate, error) {
	parts := strings.Split(header, ",")
	candidates := make([]candidate, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, params, err := mime.ParseMediaType(part)
		if err != nil {
			continue
		}
		q := 1.0
		if raw, ok := params["q"]; ok {
			if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
				q = parsed
			}
		}
		candidates = append(candidates, candidate{
			mediaType: t,
			version:   params["version"],
			q:         q,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].q > candidates[j].q
	})
	return candidates, nil
}
