// Package sites defines the tenant model for Inkwell: sites, the six-level
// ranked role hierarchy (Owner > Admin > Editor > Author > Reviewer > Viewer),
// per-site memberships, and the system-admin allow-list.
//
// Role comparisons are purely numeric rank so a requirement like "at least
// Author" is satisfied by any higher role. Membership absence is represented
// as a nil row, never a default role. Sole-ownership is guarded at the store
// level: the last Owner of a site cannot be demoted or removed, and ownership
// transfer is an atomic demote-plus-upsert transaction.
package sites
