package vectorstore

import "encoding/json"

func marshalPayload(payload map[string]any) ([]byte, error) {
	return json.Marshal(payload)
}

func unmarshalPayload(raw []byte) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
