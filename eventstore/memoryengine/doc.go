// Package memoryengine provides an in-memory implementation of the eventstore interfaces.
//
// Transactions buffer appended records, staged outbox messages, and processed marks. Append checks
// versions early against committed and buffered state. Commit re-checks them under the store lock
// and applies everything or nothing, so a failed commit leaves no record of the transaction behind.
//
// The engine is meant for tests, examples, and single-process tools. It keeps everything in memory
// and does not lock fetched outbox messages against concurrent relays.
package memoryengine
