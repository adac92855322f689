package codec_test

import (
	"testing"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/require"

	"github.com/CZERTAINLY/CBOM-Repository/internal/bom"
	"github.com/CZERTAINLY/CBOM-Repository/internal/codec"
)

func sampleBOM() *cdx.BOM {
	doc := cdx.NewBOM()
	doc.SerialNumber = "urn:uuid:3e671687-395b-41f5-a30f-a58921a69b79"
	doc.Version = 1
	doc.Components = &[]cdx.Component{
		{
			Type:    cdx.ComponentTypeLibrary,
			Name:    "left-pad",
			Version: "1.3.0",
		},
	}
	return doc
}

func TestSupported(t *testing.T) {
	tests := map[string]struct {
		format  bom.Format
		version bom.SchemaVersion
		want    bool
	}{
		"xml 1.0":      {bom.FormatXML, bom.SchemaVersion1_0, true},
		"xml 1.4":      {bom.FormatXML, bom.SchemaVersion1_4, true},
		"json 1.0":     {bom.FormatJSON, bom.SchemaVersion1_0, false},
		"json 1.2":     {bom.FormatJSON, bom.SchemaVersion1_2, true},
		"protobuf 1.2": {bom.FormatProtobuf, bom.SchemaVersion1_2, false},
		"protobuf 1.3": {bom.FormatProtobuf, bom.SchemaVersion1_3, true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tt.want, codec.Supported(tt.format, tt.version))
		})
	}
}

func TestHighestSupported(t *testing.T) {
	v, ok := codec.HighestSupported(bom.FormatJSON)
	require.True(t, ok)
	require.Equal(t, bom.SchemaVersion1_4, v)

	v, ok = codec.HighestSupported(bom.FormatProtobuf)
	require.True(t, ok)
	require.Equal(t, bom.SchemaVersion1_4, v)

	_, ok = codec.HighestSupported(bom.FormatUnknown)
	require.False(t, ok)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := map[string]struct {
		format  bom.Format
		version bom.SchemaVersion
	}{
		"xml 1.4":      {bom.FormatXML, bom.SchemaVersion1_4},
		"xml 1.0":      {bom.FormatXML, bom.SchemaVersion1_0},
		"json 1.3":     {bom.FormatJSON, bom.SchemaVersion1_3},
		"protobuf 1.4": {bom.FormatProtobuf, bom.SchemaVersion1_4},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			doc := sampleBOM()
			data, err := codec.Encode(doc, tt.format, tt.version)
			require.NoError(t, err)
			require.NotEmpty(t, data)

			decoded, err := codec.Decode(data, tt.format)
			require.NoError(t, err)
			require.Equal(t, doc.SerialNumber, decoded.SerialNumber)

			sv, err := codec.SchemaVersionOf(decoded)
			require.NoError(t, err)
			require.Equal(t, tt.version, sv)
		})
	}
}

func TestEncodeUnsupportedCell(t *testing.T) {
	_, err := codec.Encode(sampleBOM(), bom.FormatProtobuf, bom.SchemaVersion1_2)
	require.ErrorIs(t, err, codec.ErrUnsupportedFormatVersion)
}

func TestDowngradeDropsNewerFields(t *testing.T) {
	doc := sampleBOM()
	doc.Metadata = &cdx.Metadata{
		Lifecycles: &[]cdx.Lifecycle{{Phase: cdx.LifecyclePhaseBuild}},
	}

	data, err := codec.Encode(doc, bom.FormatXML, bom.SchemaVersion1_0)
	require.NoError(t, err)

	decoded, err := codec.Decode(data, bom.FormatXML)
	require.NoError(t, err)
	if decoded.Metadata != nil {
		require.Nil(t, decoded.Metadata.Lifecycles)
	}
}
