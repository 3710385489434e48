// Package bom assembles the CycloneDX export of a finished task.
//
// A document describes one task: its id is recorded as a property and is the
// basis of the serial number, so exporting the same task twice yields the
// same serial.
package bom

import (
	"io"
	"runtime/debug"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/google/uuid"
)

const propertyPrefix = "runway:"

// serialSpace is the name space of serial numbers derived from task ids
var serialSpace = uuid.MustParse("5f0c9e5a-3a4b-4d7e-9a51-7c1d2a6b8e40")

// Builder collects components and dependencies of one task
type Builder struct {
	taskID       string
	now          func() time.Time
	components   []cdx.Component
	dependencies []cdx.Dependency
	properties   []cdx.Property
}

// NewBuilder starts a document for taskID. An empty id gets a random serial.
func NewBuilder(taskID string) *Builder {
	b := &Builder{
		taskID: taskID,
		now:    time.Now,
		// cyclonedx json schema does not allow these to be null
		components:   []cdx.Component{},
		dependencies: []cdx.Dependency{},
		properties:   []cdx.Property{},
	}
	return b.Property("task_id", taskID)
}

// WithNow overrides the clock used for the metadata timestamp
func (b *Builder) WithNow(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) AppendComponents(components ...cdx.Component) *Builder {
	b.components = append(b.components, components...)
	return b
}

func (b *Builder) AppendDependencies(dependencies ...cdx.Dependency) *Builder {
	b.dependencies = append(b.dependencies, dependencies...)
	return b
}

// Property records runway:<name>. Empty values are left out.
func (b *Builder) Property(name, value string) *Builder {
	if value == "" {
		return b
	}
	b.properties = append(b.properties, cdx.Property{Name: propertyPrefix + name, Value: value})
	return b
}

// SerialNumber returns the urn of the document
func (b *Builder) SerialNumber() string {
	if b.taskID == "" {
		return uuid.New().URN()
	}
	return uuid.NewSHA1(serialSpace, []byte(b.taskID)).URN()
}

func (b *Builder) BOM() cdx.BOM {
	return cdx.BOM{
		JSONSchema:   "https://cyclonedx.org/schema/bom-1.6.schema.json",
		BOMFormat:    "CycloneDX",
		SpecVersion:  cdx.SpecVersion1_6,
		SerialNumber: b.SerialNumber(),
		Version:      1,
		Metadata: &cdx.Metadata{
			Timestamp:  b.now().UTC().Format(time.RFC3339),
			Lifecycles: &[]cdx.Lifecycle{{Phase: "operations"}},
			// a nil component fails in MarshalJSON of *cyclonedx.ToolsChoice
			Component: &cdx.Component{
				Type:    cdx.ComponentTypeApplication,
				Name:    "runway",
				Version: buildVersion(),
				Manufacturer: &cdx.OrganizationalEntity{
					Name: "CZERTAINLY",
					URL:  &[]string{"https://www.czertainly.com"},
				},
			},
		},
		Components:   &b.components,
		Dependencies: &b.dependencies,
		Properties:   &b.properties,
	}
}

// AsJSON writes the document as indented JSON
func (b *Builder) AsJSON(w io.Writer) error {
	bom := b.BOM()
	return cdx.NewBOMEncoder(w, cdx.BOMFileFormatJSON).SetPretty(true).Encode(&bom)
}

func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	return info.Main.Version
}
