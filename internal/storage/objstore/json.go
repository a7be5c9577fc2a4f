package objstore

import "encoding/json"

func decodeJSON(data []byte, v any) bool {
	return json.Unmarshal(data, v) == nil
}

func encodeJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
