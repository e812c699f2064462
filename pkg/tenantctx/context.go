// Package tenantctx carries the resolved tenant/user identity through a
// request's context.Context and defines the fixed permission/role model
// (C1). Every request that touches tenant-owned state must carry a
// resolved tenant_id and user_id, populated by the auth middleware after
// validating the bearer token and consulting the blacklist.
package tenantctx

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const identityKey ctxKey = iota

// Identity is the resolved caller identity attached to a request context.
type Identity struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	JTI         string
	IsSuperuser bool
}

// WithIdentity returns a new context carrying the given identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the resolved identity. ok is false on any
// non-authenticated (public) path context.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Permission is one of the fixed, enumerated capability tags.
type Permission string

const (
	PermProjectRead     Permission = "project:read"
	PermProjectWrite    Permission = "project:write"
	PermProjectDelete   Permission = "project:delete"
	PermProjectAdmin    Permission = "project:admin"
	PermDocumentRead    Permission = "document:read"
	PermDocumentWrite   Permission = "document:write"
	PermAgentExecute    Permission = "agent:execute"
	PermAgentRead       Permission = "agent:read"
	PermAnalyticsRead   Permission = "analytics:read"
	PermExportDocuments Permission = "export:documents"
)

// RoleName is one of the three fixed seeded roles.
type RoleName string

const (
	RoleOwner  RoleName = "OWNER"
	RoleEditor RoleName = "EDITOR"
	RoleViewer RoleName = "VIEWER"
)

// allPermissions is the full enumeration, granted to OWNER.
var allPermissions = []Permission{
	PermProjectRead, PermProjectWrite, PermProjectDelete, PermProjectAdmin,
	PermDocumentRead, PermDocumentWrite,
	PermAgentExecute, PermAgentRead,
	PermAnalyticsRead, PermExportDocuments,
}

// readOnlyPermissions is granted to VIEWER.
var readOnlyPermissions = []Permission{
	PermProjectRead, PermDocumentRead, PermAgentRead, PermAnalyticsRead,
}

// editorPermissions is granted to EDITOR: read/write plus execute.
var editorPermissions = []Permission{
	PermProjectRead, PermProjectWrite,
	PermDocumentRead, PermDocumentWrite,
	PermAgentExecute, PermAgentRead,
	PermAnalyticsRead, PermExportDocuments,
}

// PermissionsFor returns the fixed permission set for a seeded role name.
// An unrecognized role name carries no permissions.
func PermissionsFor(role RoleName) []Permission {
	switch role {
	case RoleOwner:
		return allPermissions
	case RoleEditor:
		return editorPermissions
	case RoleViewer:
		return readOnlyPermissions
	default:
		return nil
	}
}

// Has reports whether the given permission set contains p.
func Has(granted []Permission, p Permission) bool {
	for _, g := range granted {
		if g == p {
			return true
		}
	}
	return false
}
