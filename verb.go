package brainy

// Verb is a typed, weighted, directed edge between two nouns. It carries
// its own vector and metadata, so verbs participate in vector search and
// filtering the same way nouns do (spec §3).
type Verb struct {
	ID     string    `json:"id"`
	Vector []float32 `json:"vector,omitempty"`

	Source string   `json:"source"`
	Target string   `json:"target"`
	Verb   VerbType `json:"verb"`
	Weight float64  `json:"weight"`

	Metadata    map[string]any   `json:"metadata,omitempty"`
	Connections map[int][]string `json:"connections,omitempty"`

	CreatedAt Timestamp  `json:"createdAt"`
	UpdatedAt Timestamp  `json:"updatedAt"`
	CreatedBy *CreatedBy `json:"createdBy,omitempty"`

	SchemaVersion int `json:"schemaVersion"`

	// AutoCreateMissingNouns, when set, tells AddVerb to create minimal
	// placeholder nouns for Source/Target endpoints that don't already
	// exist instead of rejecting the verb with NotFound (§3 Verb
	// invariant). Not persisted; it only affects how AddVerb handles v.
	AutoCreateMissingNouns bool `json:"-"`
}

// Clone returns a deep-enough copy of v, mirroring Noun.Clone.
func (v *Verb) Clone() *Verb {
	if v == nil {
		return nil
	}
	c := *v
	if v.Vector != nil {
		c.Vector = append([]float32(nil), v.Vector...)
	}
	if v.Metadata != nil {
		c.Metadata = make(map[string]any, len(v.Metadata))
		for k, val := range v.Metadata {
			c.Metadata[k] = val
		}
	}
	if v.Connections != nil {
		c.Connections = make(map[int][]string, len(v.Connections))
		for layer, ids := range v.Connections {
			c.Connections[layer] = append([]string(nil), ids...)
		}
	}
	if v.CreatedBy != nil {
		cb := *v.CreatedBy
		c.CreatedBy = &cb
	}
	return &c
}

// Triple identifies a (source, target, verb-type) combination. Duplicate
// triples are allowed; each verb still gets a distinct ID (spec §3).
type Triple struct {
	Source string
	Target string
	Verb   VerbType
}

func (v *Verb) triple() Triple {
	return Triple{Source: v.Source, Target: v.Target, Verb: v.Verb}
}
