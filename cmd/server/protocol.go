// Package main provides a TCP query server for SliceDB.
//
// The wire protocol is line oriented. Clients send one statement per line:
// either "AUTH JWT <token>", "quit"/"exit", or raw SQL. The server answers
// each line with one JSON-encoded Response terminated by a newline.
package main

import (
	"encoding/json"
)

// Response is the envelope for every server reply.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Type    string          `json:"type,omitempty"` // "query", "exec" or "auth"
	Result  json.RawMessage `json:"result,omitempty"`
}

// QueryResponse contains tabular query results.
type QueryResponse struct {
	Columns     []string   `json:"columns"`
	Data        [][]string `json:"data"`
	RecordsRead int        `json:"records_read"`
	TimeMs      float64    `json:"time_ms"`
}

// ExecResponse reports a committed statement.
type ExecResponse struct {
	TimeMs float64 `json:"time_ms"`
}

// AuthResponse reports the outcome of an AUTH command.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity,omitempty"`
	ExpiresIn     int    `json:"expires_in,omitempty"`
}

// EncodeResponse serializes a Response to JSON with a trailing newline.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
