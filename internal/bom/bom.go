// Package bom defines the value types shared by the codec, store, and
// negotiator: a BOM's identity (serial number, version), its wire
// format, and its schema version. The BOM payload itself stays
// represented as *cyclonedx.BOM — the canonical, schema-version
// independent in-memory model the three codecs share.
package bom

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Format is a CycloneDX wire serialization.
type Format int

const (
	FormatUnknown Format = iota
	FormatXML
	FormatJSON
	FormatProtobuf
)

// Extension returns the on-disk file extension for the format, per the
// store's content-addressed layout (<root>/<serial>/<version>/bom.<ext>).
func (f Format) Extension() string {
	switch f {
	case FormatXML:
		return "xml"
	case FormatJSON:
		return "json"
	case FormatProtobuf:
		return "cdx"
	default:
		return ""
	}
}

// String implements fmt.Stringer for logging.
func (f Format) String() string {
	switch f {
	case FormatXML:
		return "xml"
	case FormatJSON:
		return "json"
	case FormatProtobuf:
		return "protobuf"
	default:
		return "unknown"
	}
}

// FormatFromExtension maps a stored file extension back to its Format.
func FormatFromExtension(ext string) (Format, bool) {
	switch ext {
	case "xml":
		return FormatXML, true
	case "json":
		return FormatJSON, true
	case "cdx":
		return FormatProtobuf, true
	default:
		return FormatUnknown, false
	}
}

// SchemaVersion is a CycloneDX specification revision, "1.0".."1.4".
type SchemaVersion string

const (
	SchemaVersion1_0 SchemaVersion = "1.0"
	SchemaVersion1_1 SchemaVersion = "1.1"
	SchemaVersion1_2 SchemaVersion = "1.2"
	SchemaVersion1_3 SchemaVersion = "1.3"
	SchemaVersion1_4 SchemaVersion = "1.4"
)

// SchemaVersions lists every schema version this repository knows
// about, oldest first.
var SchemaVersions = []SchemaVersion{
	SchemaVersion1_0, SchemaVersion1_1, SchemaVersion1_2, SchemaVersion1_3, SchemaVersion1_4,
}

// serialNumberPattern implements spec's canonical URN form:
// urn:uuid:XXXXXXXX-XXXX-XXXX-XXXX-XXXXXXXXXXXX with lowercase hex
// digits only, no surrounding whitespace, no brace form.
var serialNumberPattern = regexp.MustCompile(
	`^urn:uuid:[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`,
)

// ErrInvalidSerialNumber is returned when a serial number does not
// match the canonical URN form.
var ErrInvalidSerialNumber = errors.New("invalid serial number")

// SerialNumber is a BOM's stable identifier.
type SerialNumber string

// Validate reports whether s is a well-formed serial number: the
// canonical lowercase, unbraced urn:uuid: form, and a UUID the RFC
// 4122 parser itself accepts.
func (s SerialNumber) Validate() error {
	if !serialNumberPattern.MatchString(string(s)) {
		return ErrInvalidSerialNumber
	}
	id, err := uuid.Parse(strings.TrimPrefix(string(s), "urn:uuid:"))
	if err != nil || id.String() != strings.TrimPrefix(string(s), "urn:uuid:") {
		return ErrInvalidSerialNumber
	}
	return nil
}

// String implements fmt.Stringer.
func (s SerialNumber) String() string {
	return string(s)
}
