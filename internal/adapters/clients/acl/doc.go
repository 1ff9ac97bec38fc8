// Package acl is the Anti-Corruption Layer between the gateway and the
// ModelScope MCP registry.
//
// # What the layer guarantees
//
// The registry speaks its own dialect: an envelope around every payload,
// vendor field names, free-form transport labels and error codes carried
// inside 2xx responses. The adapters here make sure that:
//
//   - Vendor DTOs never leave this package
//   - Vendor payloads are checked before domain values are built
//   - Vendor failures surface as raw errors with the vendor's own message
//
// # Error Handling Strategy
//
// Adapters do not classify failures. Classification belongs to the
// resilience normalizer, which sees the raw error after each attempt:
//
//   - Non-2xx responses arrive as [clients.StatusError]; [enrichError] fills
//     in the vendor message from the body
//   - A 2xx envelope reporting failure becomes a [clients.StatusError] when
//     its code is an HTTP status, or an [APIError] otherwise
//   - Transport errors and [clients.ErrCircuitOpen] pass through untouched
//
// # Package Components
//
//   - [BaseAdapter]: shared request plumbing for registry endpoints
//   - [ErrorResponse] and [ParseErrorResponse]: vendor error body parsing
//   - [TranslateSlice]: batch translation that skips unusable items
//   - [RegistryClient]: the ModelScope registry adapter
package acl
