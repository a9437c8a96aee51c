package worker

import "encoding/json"

func decodePayload(raw []byte, v interface{}) error {
	return json.Unmarshal(raw, v)
}
