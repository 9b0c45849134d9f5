// Package http provides HTTP handlers and middleware for the calshare API.
//
// The router exposes the following endpoints:
//   - POST /auth/register: creates an account and its default calendar. Body:
//     {"email","display_name","password"}.
//   - POST /auth/sessions: issues a session token. Body: {"email","password"}. The token
//     is also surfaced via the `X-Session-Token` header and a `session_token` cookie.
//   - DELETE /auth/sessions/current: revokes the session used for the request.
//   - GET|POST /calendars, PUT|DELETE /calendars/{id}: calendars visible to the caller,
//     each annotated with the caller's role. Deleting requires ownership.
//   - GET /calendars/{id}/export.ics: the calendar as an iCalendar document.
//   - GET /calendars/{id}/members, PATCH|DELETE /calendars/{id}/members/{userID}:
//     member listing and role management. The owner is listed first and cannot be
//     changed through these routes.
//   - POST /calendars/{id}/members: invites an e-mail address. A pending invite for the
//     same address is re-issued with a fresh token.
//   - GET /calendars/{id}/invites, DELETE /invites/id/{inviteID}: invite administration.
//   - GET /invites/{token}, POST /invites/{token}/accept, POST /invites/{token}/decline:
//     invitee-facing routes. The caller's e-mail must match the invite.
//   - GET|POST /events, PUT|DELETE /events/{id}: events in the caller's calendars.
//     Listing requires `start` and `end` and accepts repeated `calendarId`.
//   - GET /healthz and GET /metrics: liveness and Prometheus exposition.
//
// Errors are rendered as {"error_code","message","errors"} with localized messages.
// Request/response DTOs live alongside their respective handlers.
package http
