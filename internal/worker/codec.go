package worker

import "encoding/json"

func decodeArgs(payload []byte, v any) error {
	return json.Unmarshal(payload, v)
}

func encodeReply(v any) ([]byte, error) {
	return json.Marshal(v)
}
