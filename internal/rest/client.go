// Package rest is the transport layer between resource handles and the
// array's management API.
//
// Resources depend only on the Client interface, so tests drive them with an
// in-memory fake while production code uses HTTPClient. Transport failures
// are returned as the error of each call; array-reported failures travel in
// the Response and become typed errors through Response.Err or Check.
package rest

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/arrayops/internal/version"
)

// Client issues typed requests against one array.
type Client interface {
	// Get fetches one instance, including the given nested field paths.
	Get(ctx context.Context, typ, id string, fields []string) (*Response, error)
	// List fetches all instances of typ matching filter.
	List(ctx context.Context, typ string, filter Body, fields []string) (*Response, error)
	Post(ctx context.Context, typ string, body Body) (*Response, error)
	Modify(ctx context.Context, typ, id string, body Body) (*Response, error)
	Delete(ctx context.Context, typ, id string, body Body) (*Response, error)
	// Action invokes a named action on one instance.
	Action(ctx context.Context, typ, id, action string, body Body) (*Response, error)
	// TypeAction invokes a named action on the type itself.
	TypeAction(ctx context.Context, typ, action string, body Body) (*Response, error)

	// Version is the array software version probed at connect time.
	Version() *version.Version
	Logger() logrus.FieldLogger
}
