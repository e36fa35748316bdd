package counter

import "encoding/json"

// decodeHandlerArgs and encodeHandlerReply keep every RPC handler in this
// package dealing in typed Go values rather than raw bytes, matching the
// JSON envelope convention internal/transport.Client uses on the calling
// side.
func decodeHandlerArgs(payload []byte, args any) error {
	return json.Unmarshal(payload, args)
}

func encodeHandlerReply(reply any) ([]byte, error) {
	return json.Marshal(reply)
}
