package brainy

// NounType is a closed enumeration of entity kinds a Noun can carry.
// Types are known ahead of time; the type-aware HNSW index builds one
// graph per type (internal/hnsw).
type NounType string

// The closed set of noun types (spec §3).
const (
	NounPerson       NounType = "Person"
	NounOrganization NounType = "Organization"
	NounLocation     NounType = "Location"
	NounThing        NounType = "Thing"
	NounConcept      NounType = "Concept"
	NounDocument     NounType = "Document"
	NounContent      NounType = "Content"
	NounEvent        NounType = "Event"
	NounProject      NounType = "Project"
	NounTask         NounType = "Task"
)

var validNounTypes = map[NounType]bool{
	NounPerson: true, NounOrganization: true, NounLocation: true,
	NounThing: true, NounConcept: true, NounDocument: true,
	NounContent: true, NounEvent: true, NounProject: true, NounTask: true,
}

// IsValidNounType reports whether t is one of the closed noun types.
func IsValidNounType(t NounType) bool {
	return validNounTypes[t]
}

// VerbType is a closed enumeration of relation kinds a Verb can carry.
type VerbType string

// The closed set of verb types (spec §3).
const (
	VerbRelatedTo  VerbType = "RelatedTo"
	VerbContains   VerbType = "Contains"
	VerbPartOf     VerbType = "PartOf"
	VerbLocatedAt  VerbType = "LocatedAt"
	VerbReferences VerbType = "References"
	VerbPrecedes   VerbType = "Precedes"
	VerbWorksWith  VerbType = "WorksWith"
	VerbCreates    VerbType = "Creates"
)

var validVerbTypes = map[VerbType]bool{
	VerbRelatedTo: true, VerbContains: true, VerbPartOf: true,
	VerbLocatedAt: true, VerbReferences: true, VerbPrecedes: true,
	VerbWorksWith: true, VerbCreates: true,
}

// IsValidVerbType reports whether t is one of the closed verb types.
func IsValidVerbType(t VerbType) bool {
	return validVerbTypes[t]
}

// allVerbTypes lists the closed verb type set for callers that must
// enumerate every verb in storage (e.g. rebuilding graph adjacency on
// cold start).
func allVerbTypes() []VerbType {
	return []VerbType{
		VerbRelatedTo, VerbContains, VerbPartOf, VerbLocatedAt,
		VerbReferences, VerbPrecedes, VerbWorksWith, VerbCreates,
	}
}

// Default tunables (spec §3, §4.E).
const (
	DefaultDimension = 384
	DefaultMinWeight = 0.0
	DefaultMaxWeight = 1.0
	DefaultWeight    = 0.5

	DefaultM              = 16
	DefaultEfConstruction = 200
	DefaultEfSearch       = 50

	// SchemaVersion is written into every persisted noun and verb
	// record (§6). Reads do not check it: a record with a higher
	// version is decoded like any other.
	SchemaVersion = 1
)

// CreatedBy identifies the service and version that produced a record.
type CreatedBy struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

// Timestamp is a monotonic (seconds, nanoseconds) pair, matching the
// spec's createdAt/updatedAt shape.
type Timestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int32 `json:"nanoseconds"`
}
