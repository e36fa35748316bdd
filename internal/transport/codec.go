package transport

import "encoding/json"

// marshalArgs and unmarshalReply centralize the JSON envelope convention
// every handler and every Client.Call share, so call sites just pass plain
// Go values.
func marshalArgs(args any) ([]byte, error) {
	if args == nil {
		return []byte("null"), nil
	}
	return json.Marshal(args)
}

func unmarshalReply(payload []byte, reply any) error {
	if reply == nil || len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, reply)
}
