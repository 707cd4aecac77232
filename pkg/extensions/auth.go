// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
)

// ErrUnauthorized is the sentinel for failed authentication or a denied
// authorization check. Implementations wrap it so middleware can map it
// to 401/403 with errors.Is:
//
//	return fmt.Errorf("token expired: %w", extensions.ErrUnauthorized)
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo is the identity attached to a request after the bearer token
// validates. The gateway stamps it into the request context; the ask
// handler reads UserID for session logging and audit events.
type AuthInfo struct {
	// UserID uniquely identifies the caller. Never empty on a valid
	// AuthInfo.
	UserID string

	// Email may be empty when the identity provider withholds it.
	Email string

	// Roles drive authorization decisions. The deployments this
	// service targets use "admin", "analyst", and "viewer".
	Roles []string

	// Metadata carries provider-specific claims (groups, tenant,
	// mfa_verified) without widening this struct.
	Metadata map[string]any
}

// HasRole reports whether the identity carries the given role.
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates bearer tokens for the /v1 route group.
//
// The default NopAuthProvider admits every request as an admin local
// user, so a bare deployment needs no identity infrastructure.
// Enterprise builds validate against Entra ID or another provider:
//
//	func (p *EntraProvider) Validate(ctx context.Context, token string) (*AuthInfo, error) {
//	    claims, err := p.verifier.Verify(ctx, token)
//	    if err != nil {
//	        return nil, fmt.Errorf("entra validation failed: %w", ErrUnauthorized)
//	    }
//	    return &AuthInfo{UserID: claims.Subject, Email: claims.Email, Roles: claims.Groups}, nil
//	}
//
// Implementations must be safe for concurrent use.
type AuthProvider interface {
	// Validate checks the token and returns the caller's identity, or
	// ErrUnauthorized (possibly wrapped) when the token is rejected.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// AuthzRequest is one (user, action, resource) authorization check. The
// ask handler checks {Action: "execute", ResourceType: "query"} before
// running the agent loop; enterprise policies can also scope checks to
// individual tables:
//
//	req := AuthzRequest{
//	    User:         authInfo,
//	    Action:       "read",
//	    ResourceType: "table",
//	    ResourceID:   "Customers",
//	}
type AuthzRequest struct {
	// User is the authenticated caller, from AuthProvider.Validate.
	User *AuthInfo

	// Action is the operation: "read", "execute".
	Action string

	// ResourceType is the resource category: "query", "table".
	ResourceType string

	// ResourceID narrows the check to one resource, e.g. a table name.
	// Empty checks the resource type as a whole.
	ResourceID string
}

// AuthzProvider decides whether an authenticated user may perform an
// action. A denial returns ErrUnauthorized (possibly wrapped); the
// gateway maps it to 403 and emits an authz.denied audit event.
//
// Implementations must be safe for concurrent use.
type AuthzProvider interface {
	Authorize(ctx context.Context, req AuthzRequest) error
}

// NopAuthProvider admits every request as the admin local user. Any
// token, including none at all, validates; single-user deployments run
// without identity infrastructure.
type NopAuthProvider struct{}

// Validate returns the local admin identity regardless of token.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Roles:  []string{"admin"},
	}, nil
}

// NopAuthzProvider allows every action. Single-user deployments have no
// access policies to enforce.
type NopAuthzProvider struct{}

// Authorize always permits the request.
func (p *NopAuthzProvider) Authorize(_ context.Context, _ AuthzRequest) error {
	return nil
}

var (
	_ AuthProvider  = (*NopAuthProvider)(nil)
	_ AuthzProvider = (*NopAuthzProvider)(nil)
)
