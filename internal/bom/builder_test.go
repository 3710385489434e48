package bom_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/runway/internal/bom"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 10, 17, 8, 0, 0, 0, time.UTC)
	b := bom.NewBuilder("scan-0123456789ab").
		WithNow(func() time.Time { return now }).
		AppendComponents(cdx.Component{
			BOMRef: "nmap:host/10.0.0.1",
			Type:   cdx.ComponentTypeDevice,
			Name:   "host:10.0.0.1",
		}, cdx.Component{
			BOMRef: "nmap:tcp/open/10.0.0.1:22",
			Type:   cdx.ComponentTypeData,
			Name:   "tcp/22",
		}).
		AppendDependencies(cdx.Dependency{
			Ref:          "nmap:host/10.0.0.1",
			Dependencies: &[]string{"nmap:tcp/open/10.0.0.1:22"},
		}).
		Property("kind", "nmap").
		Property("nmap_args", "")

	doc := b.BOM()
	require.Equal(t, cdx.SpecVersion1_6, doc.SpecVersion)
	require.True(t, strings.HasPrefix(doc.SerialNumber, "urn:uuid:"))
	require.Equal(t, "2025-10-17T08:00:00Z", doc.Metadata.Timestamp)
	require.Equal(t, "runway", doc.Metadata.Component.Name)
	require.Len(t, *doc.Components, 2)
	require.Equal(t, []cdx.Property{
		{Name: "runway:task_id", Value: "scan-0123456789ab"},
		{Name: "runway:kind", Value: "nmap"},
	}, *doc.Properties)

	var buf bytes.Buffer
	require.NoError(t, b.AsJSON(&buf))

	var decoded cdx.BOM
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "CycloneDX", decoded.BOMFormat)
	require.Equal(t, doc.SerialNumber, decoded.SerialNumber)
	require.Len(t, *decoded.Dependencies, 1)
}

func TestBuilder_SerialNumber(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    [2]string
		same     bool
	}{
		{scenario: "same task", given: [2]string{"scan-0123456789ab", "scan-0123456789ab"}, same: true},
		{scenario: "other task", given: [2]string{"scan-0123456789ab", "scan-ba9876543210"}},
		{scenario: "no task", given: [2]string{"", ""}},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			first := bom.NewBuilder(tc.given[0]).SerialNumber()
			second := bom.NewBuilder(tc.given[1]).SerialNumber()
			require.True(t, strings.HasPrefix(first, "urn:uuid:"))
			if tc.same {
				require.Equal(t, first, second)
			} else {
				require.NotEqual(t, first, second)
			}
		})
	}
}

func TestBuilder_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, bom.NewBuilder("").AsJSON(&buf))
	// schema does not allow nulls
	require.Contains(t, buf.String(), `"components": []`)
	require.Contains(t, buf.String(), `"dependencies": []`)
	require.Contains(t, buf.String(), `"properties": []`)
}
