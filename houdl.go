// Package houdl exposes the build-distribution client builder.
package houdl

import (
	"github.com/houdl/houdl/client"
	"github.com/houdl/houdl/client/auth"
)

// NewClient instantiates a *Client for the given application
// credentials. Defaults target the production service endpoints with
// an in-memory token cache.
func NewClient(creds auth.Credentials, opts ...client.Option) (*client.Client, error) {
	return client.Build(creds, opts...)
}
