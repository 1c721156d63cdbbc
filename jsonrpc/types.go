package jsonrpc

import "encoding/json"

const version string = "2.0"

// request is a JSON-RPC request or, when ID is empty, a notification.
type request struct {
	Version string      `json:"jsonrpc"`
	ID      string      `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// response is a JSON-RPC response as decoded from the server.
type response struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// hasResult returns true if the response carries a non-null result.
func (r *response) hasResult() bool {
	return len(r.Result) > 0 && string(r.Result) != "null"
}

// hasNullID returns true if the response id is null or missing.
func (r *response) hasNullID() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// matchesID returns true if the response id is the string id.
func (r *response) matchesID(id string) bool {
	var repID string
	return json.Unmarshal(r.ID, &repID) == nil && repID == id
}
