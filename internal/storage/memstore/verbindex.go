package memstore

import "encoding/json"

// verbIndexFields mirrors the subset of a serialized Verb's JSON fields
// memstore needs to maintain its bySource/byTarget/byType secondary
// indexes, without importing the root package (which would create an
// import cycle, since the root package imports storage).
type verbIndexFields struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Verb   string `json:"verb"`
}

type verbIndex struct {
	source, target, verbType string
}

func decodeVerbIndex(data []byte) (verbIndex, bool) {
	var f verbIndexFields
	if err := json.Unmarshal(data, &f); err != nil {
		return verbIndex{}, false
	}
	return verbIndex{source: f.Source, target: f.Target, verbType: f.Verb}, true
}
