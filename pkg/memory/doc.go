// Package memory provides tenant-scoped cross-session memory for the
// AgencyHub assistant.
//
// # Overview
//
// Memories are stored in a remote memory backend reached over a
// JSON-RPC gateway. This package owns three concerns on top of that
// backend:
//
//  1. Scoping: every memory lives under a three-part key
//     agency::client::user, with "_" as the wildcard at the client and
//     user positions. The backend itself is tenant-blind; the key is
//     the only isolation boundary, so Key construction validates that
//     ids cannot collide with the key syntax.
//  2. The envelope: content is stored as a JSON wrapper carrying
//     structured metadata (type, topic, importance, session). Records
//     from before the envelope format decode as raw content.
//  3. Injection: selecting, deduplicating and budgeting memories into
//     a prompt fragment, including detection of "do you remember"
//     style recall queries.
//
// # Scope Keys
//
// Three shapes are in use:
//
//	agency::_::_            agency-wide
//	agency::client::_       client-level
//	agency::client::user    user-level
//
// Build them with AgencyScope, ClientScope and UserScope; UserScope
// leaves the client segment as the wildcard when no client is in
// context.
//
// # Degradation
//
// The assistant must keep answering when the memory backend is down.
// Service read paths therefore degrade: lookups return nil or empty,
// deletes return false, and the Injector falls back to an empty
// injection with a fixed explanation instead of failing the request.
//
// # Components
//
//   - Gateway / HTTPGateway: the nine backend operations over JSON-RPC
//   - Service: scoped CRUD, search with filtering, typed store helpers,
//     and a short-lived search cache
//   - Injector: recall detection and prompt injection
//   - Summarizer: stores extracted conversation insights as memories
package memory
