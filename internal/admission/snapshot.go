package admission

import "encoding/json"

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
