package sqlitestore

import "encoding/json"

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
