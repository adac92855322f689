// Package codec converts between the canonical *cyclonedx.BOM value and
// wire bytes across the three supported formats (XML, JSON, Protobuf)
// and five supported schema versions (1.0-1.4). Downgrade (encoding an
// in-memory BOM at an older schema version than it was decoded at) is a
// pure projection performed by cyclonedx-go's own EncodeVersion, which
// drops fields introduced after the target version; this package only
// validates the requested (format, version) cell and adapts cyclonedx-go's
// API to the repository's Format/SchemaVersion types.
package codec

import (
	"bytes"
	"errors"
	"fmt"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/CZERTAINLY/CBOM-Repository/internal/bom"
)

// ErrUnsupportedFormatVersion is returned when a requested
// (format, schemaVersion) pair is not in the supported matrix.
var ErrUnsupportedFormatVersion = errors.New("unsupported format/schema version")

// ErrDecodeFailure wraps any error returned while parsing submitted
// bytes into a BOM.
var ErrDecodeFailure = errors.New("bom decode failure")

// matrix mirrors spec.md §4.2's supported-format table.
var matrix = map[bom.Format]map[bom.SchemaVersion]bool{
	bom.FormatXML: {
		bom.SchemaVersion1_0: true,
		bom.SchemaVersion1_1: true,
		bom.SchemaVersion1_2: true,
		bom.SchemaVersion1_3: true,
		bom.SchemaVersion1_4: true,
	},
	bom.FormatJSON: {
		bom.SchemaVersion1_2: true,
		bom.SchemaVersion1_3: true,
		bom.SchemaVersion1_4: true,
	},
	bom.FormatProtobuf: {
		bom.SchemaVersion1_3: true,
		bom.SchemaVersion1_4: true,
	},
}

// Supported reports whether the (format, version) cell is populated in
// the supported matrix.
func Supported(format bom.Format, version bom.SchemaVersion) bool {
	versions, ok := matrix[format]
	if !ok {
		return false
	}
	return versions[version]
}

// HighestSupported returns the newest schema version supported for
// format, used when a request doesn't pin a version (spec.md §4.3).
func HighestSupported(format bom.Format) (bom.SchemaVersion, bool) {
	var best bom.SchemaVersion
	found := false
	for _, v := range bom.SchemaVersions {
		if Supported(format, v) {
			best = v
			found = true
		}
	}
	return best, found
}

func fileFormat(f bom.Format) (cdx.BOMFileFormat, error) {
	switch f {
	case bom.FormatXML:
		return cdx.BOMFileFormatXML, nil
	case bom.FormatJSON:
		return cdx.BOMFileFormatJSON, nil
	case bom.FormatProtobuf:
		return cdx.BOMFileFormatProtobuf, nil
	default:
		return 0, fmt.Errorf("%w: unknown format", ErrUnsupportedFormatVersion)
	}
}

func specVersion(v bom.SchemaVersion) (cdx.SpecVersion, error) {
	switch v {
	case bom.SchemaVersion1_0:
		return cdx.SpecVersion1_0, nil
	case bom.SchemaVersion1_1:
		return cdx.SpecVersion1_1, nil
	case bom.SchemaVersion1_2:
		return cdx.SpecVersion1_2, nil
	case bom.SchemaVersion1_3:
		return cdx.SpecVersion1_3, nil
	case bom.SchemaVersion1_4:
		return cdx.SpecVersion1_4, nil
	default:
		return 0, fmt.Errorf("%w: unknown schema version %q", ErrUnsupportedFormatVersion, v)
	}
}

// Encode projects doc onto the requested (format, version) cell and
// serializes it. Fields introduced after version are silently dropped
// by cyclonedx-go's EncodeVersion; fields introduced before it but
// absent from doc are simply omitted (no fabricated values).
func Encode(doc *cdx.BOM, format bom.Format, version bom.SchemaVersion) ([]byte, error) {
	if !Supported(format, version) {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedFormatVersion, format, version)
	}
	ff, err := fileFormat(format)
	if err != nil {
		return nil, err
	}
	sv, err := specVersion(version)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	encoder := cdx.NewBOMEncoder(&buf, ff)
	if err := encoder.EncodeVersion(doc, sv); err != nil {
		return nil, fmt.Errorf("cyclonedx encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses data as format and returns the canonical model, with
// SpecVersion populated from the document's own declared schema
// version (the source schema the entry was submitted at).
func Decode(data []byte, format bom.Format) (*cdx.BOM, error) {
	ff, err := fileFormat(format)
	if err != nil {
		return nil, err
	}

	var doc cdx.BOM
	decoder := cdx.NewBOMDecoder(bytes.NewReader(data), ff)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecodeFailure, err)
	}
	return &doc, nil
}

// SchemaVersionOf maps a decoded document's cdx.SpecVersion back to the
// repository's SchemaVersion type.
func SchemaVersionOf(doc *cdx.BOM) (bom.SchemaVersion, error) {
	switch doc.SpecVersion {
	case cdx.SpecVersion1_0:
		return bom.SchemaVersion1_0, nil
	case cdx.SpecVersion1_1:
		return bom.SchemaVersion1_1, nil
	case cdx.SpecVersion1_2:
		return bom.SchemaVersion1_2, nil
	case cdx.SpecVersion1_3:
		return bom.SchemaVersion1_3, nil
	case cdx.SpecVersion1_4:
		return bom.SchemaVersion1_4, nil
	default:
		return "", fmt.Errorf("%w: unsupported document schema version", ErrUnsupportedFormatVersion)
	}
}
