// Package remote provides feature gates from an external flagging backend.
//
// The backend is an opaque collaborator reached through the Backend
// interface; sub-packages adapt concrete services. The Provider wrapped
// around a backend bounds every call with a timeout, guards the backend with
// a circuit breaker, and degrades to the gate's default whenever the backend
// cannot answer. A reconciliation loop is never stalled or failed by an
// unreachable flagging service.
package remote
