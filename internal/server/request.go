package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
)

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// badRequest is a request the handler refuses before execution.
type badRequest struct {
	status  int
	message string
}

func (e *badRequest) Error() string { return e.message }

func invalid(message string) *badRequest {
	return &badRequest{status: http.StatusBadRequest, message: message}
}

// readRequests decodes a GET query string or a JSON POST body. A JSON array
// body is a batch and yields more than one request.
func readRequests(r *http.Request, maxBody int64) ([]GraphQLRequest, bool, *badRequest) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req := GraphQLRequest{Query: q.Get("query"), OperationName: q.Get("operationName")}
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				return nil, false, invalid("invalid 'variables' JSON")
			}
		}
		if req.Query == "" {
			return nil, false, invalid("missing 'query'")
		}
		return []GraphQLRequest{req}, false, nil
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			return nil, false, invalid("unsupported Content-Type")
		}
	}
	defer r.Body.Close()
	body := io.Reader(r.Body)
	if maxBody > 0 {
		body = io.LimitReader(r.Body, maxBody+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, false, invalid("failed to read body")
	}
	if maxBody > 0 && int64(len(data)) > maxBody {
		return nil, false, &badRequest{status: http.StatusRequestEntityTooLarge, message: "body too large"}
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var batch []GraphQLRequest
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, false, invalid("invalid JSON")
		}
		if len(batch) == 0 {
			return nil, false, invalid("empty batch")
		}
		return batch, true, nil
	}
	var req GraphQLRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, false, invalid("invalid JSON")
	}
	if req.Query == "" {
		return nil, false, invalid("missing 'query'")
	}
	return []GraphQLRequest{req}, false, nil
}
