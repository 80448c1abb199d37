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

// Package authz answers yes/no access questions from a static role to
// permission table. It holds no state and performs no I/O; the server
// remains authoritative and re-checks every request, so this table only
// gates client-side actions.
package authz

// HasPermission reports whether the role holds the permission. The lookup
// is exact: the wildcard marker or the literal permission string must be in
// the role's set. An unrecognized role holds nothing.
func HasPermission(role Role, permission Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == PermAll || p == permission {
			return true
		}
	}
	return false
}
