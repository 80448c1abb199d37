// Copyright 2026 The Redscope Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package authz

// -----------------------------------------------------------------------------
// Role Constants
// These are the canonical role names assigned by the platform. The set is
// closed: a role outside it parses to RoleUnknown, which holds no permissions.
// -----------------------------------------------------------------------------

// Role is a fixed user category determining a permission set.
type Role string

const (
	// RoleAdmin is the platform administrator.
	// Permissions: * (wildcard - all permissions)
	RoleAdmin Role = "admin"

	// RoleLead runs engagements end to end, including destructive
	// operations and report lifecycle.
	RoleLead Role = "lead"

	// RoleSenior is a senior tester with approval rights.
	RoleSenior Role = "senior"

	// RoleTester executes assigned workflows.
	RoleTester Role = "tester"

	// RoleAnalyst works on findings and reports only.
	RoleAnalyst Role = "analyst"

	// RoleViewer has read-only access.
	RoleViewer Role = "viewer"

	// RoleAPI is a service-account role with tester-equivalent access.
	RoleAPI Role = "api"

	// RoleUnknown is the fail-closed result of parsing an unrecognized
	// role name. It maps to no permissions.
	RoleUnknown Role = ""
)

// Roles lists every recognized role.
var Roles = []Role{RoleAdmin, RoleLead, RoleSenior, RoleTester, RoleAnalyst, RoleViewer, RoleAPI}

// ParseRole maps a role name from the wire to a Role. Unrecognized names
// yield RoleUnknown and false; callers must not invent permissions for it.
func ParseRole(name string) (Role, bool) {
	switch Role(name) {
	case RoleAdmin, RoleLead, RoleSenior, RoleTester, RoleAnalyst, RoleViewer, RoleAPI:
		return Role(name), true
	}
	return RoleUnknown, false
}

// -----------------------------------------------------------------------------
// Permission Constants
// A permission names a resource-action pair. Checks are exact-match only;
// there is no hierarchy or partial matching.
// -----------------------------------------------------------------------------

// Permission is a string capability a role may or may not hold.
type Permission string

// PermAll is the wildcard marker granting every permission. Only RoleAdmin
// holds it.
const PermAll Permission = "*"

const (
	PermEngagementsCreate Permission = "engagements:create"
	PermEngagementsRead   Permission = "engagements:read"
	PermEngagementsUpdate Permission = "engagements:update"
	PermEngagementsDelete Permission = "engagements:delete"

	PermTargetsCreate Permission = "targets:create"
	PermTargetsRead   Permission = "targets:read"
	PermTargetsUpdate Permission = "targets:update"
	PermTargetsDelete Permission = "targets:delete"

	PermWorkflowsCreate  Permission = "workflows:create"
	PermWorkflowsRead    Permission = "workflows:read"
	PermWorkflowsExecute Permission = "workflows:execute"
	PermWorkflowsApprove Permission = "workflows:approve"

	PermReportsCreate Permission = "reports:create"
	PermReportsRead   Permission = "reports:read"
	PermReportsExport Permission = "reports:export"
	PermReportsDelete Permission = "reports:delete"
)

// -----------------------------------------------------------------------------
// Role Permission Mappings
// Each role's set is enumerated exhaustively; roles do not inherit from each
// other. The table is a process-wide constant.
// -----------------------------------------------------------------------------

var rolePermissions = map[Role][]Permission{
	RoleAdmin: {PermAll},
	RoleLead: {
		PermEngagementsCreate, PermEngagementsRead, PermEngagementsUpdate, PermEngagementsDelete,
		PermTargetsCreate, PermTargetsRead, PermTargetsUpdate, PermTargetsDelete,
		PermWorkflowsExecute, PermWorkflowsApprove, PermWorkflowsCreate, PermWorkflowsRead,
		PermReportsCreate, PermReportsRead, PermReportsExport, PermReportsDelete,
	},
	RoleSenior: {
		PermEngagementsRead, PermTargetsRead, PermTargetsCreate, PermTargetsUpdate,
		PermWorkflowsExecute, PermWorkflowsApprove, PermWorkflowsRead,
		PermReportsCreate, PermReportsRead, PermReportsExport,
	},
	RoleTester: {
		PermEngagementsRead, PermTargetsRead, PermWorkflowsExecute, PermReportsRead,
	},
	RoleAnalyst: {
		PermEngagementsRead, PermReportsCreate, PermReportsRead, PermReportsExport,
	},
	RoleViewer: {
		PermEngagementsRead, PermReportsRead,
	},
	RoleAPI: {
		PermEngagementsRead, PermTargetsRead, PermWorkflowsExecute, PermReportsRead,
	},
}

// Permissions returns the permission set for a role. Unrecognized roles get
// the empty set.
func Permissions(role Role) []Permission {
	return rolePermissions[role]
}
