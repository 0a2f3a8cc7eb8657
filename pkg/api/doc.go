// Package api provides the admin HTTP surface of the permission
// engine. The engine itself is consumed as a library by the hosting
// application; this API exposes operational endpoints behind a static
// admin bearer token:
//
//   - POST /api/v1/admin/sync                           full role resync
//   - POST /api/v1/admin/sync/identities/{user}         single-identity resync
//   - POST /api/v1/admin/events/board-position-changed  replay a directory event
//   - POST /api/v1/admin/events/volunteer-relinked
//   - POST /api/v1/admin/events/member-relinked
//   - POST /api/v1/admin/events/chapter-role-changed
//   - POST /api/v1/admin/validation/run                 security validation run
//   - GET  /api/v1/admin/identities/{user}              resolved scopes + positions
//   - GET  /api/v1/admin/identities/{user}/filters/{record}
//   - POST /api/v1/admin/identities/{user}/checks       record-level check
//   - GET  /api/v1/admin/audit/events                   audit trail search
//   - GET  /api/v1/admin/openapi.yaml                   OpenAPI specification
//   - GET  /api/v1/admin/api-docs                       Swagger UI
package api
