package rest

import (
	"strings"

	"github.com/jbweber/arrayops/internal/apierrors"
)

// Response is the decoded result of one array request.
type Response struct {
	StatusCode int
	// ErrorCode is the array error code, 0 on success.
	ErrorCode int
	Messages  []string
	// Contents holds the "content" objects of the reply: one for instance
	// and action replies, one per row for list replies.
	Contents  []map[string]any
	RequestID string
}

// OK returns a canned success response for operations that short-circuit
// without contacting the array.
func OK() *Response {
	return &Response{StatusCode: 204}
}

// IsOK reports whether the array accepted the request.
func (r *Response) IsOK() bool {
	return r != nil && r.ErrorCode == 0 && (r.StatusCode == 0 || r.StatusCode < 400)
}

// Err returns the typed array error carried by the response, or nil.
func (r *Response) Err() error {
	if r == nil {
		return apierrors.New(apierrors.KindGeneric, "empty response")
	}
	if r.IsOK() {
		return nil
	}
	err := apierrors.FromCode(r.ErrorCode, strings.Join(r.Messages, "; "))
	if r.ErrorCode == 0 && r.StatusCode == 404 {
		err.Kind = apierrors.KindNotFound
	}
	return err
}

// FirstContent returns the first content object, or nil.
func (r *Response) FirstContent() map[string]any {
	if r == nil || len(r.Contents) == 0 {
		return nil
	}
	return r.Contents[0]
}

// ResourceID is the id of the object a create or action reply refers to.
func (r *Response) ResourceID() string {
	first := r.FirstContent()
	if first == nil {
		return ""
	}
	if id, ok := first["id"].(string); ok {
		return id
	}
	if sr, ok := first["storageResource"].(map[string]any); ok {
		if id, ok := sr["id"].(string); ok {
			return id
		}
	}
	return ""
}

// Check folds a transport error and the response's array error into one.
func Check(resp *Response, err error) (*Response, error) {
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return resp, err
	}
	return resp, nil
}
