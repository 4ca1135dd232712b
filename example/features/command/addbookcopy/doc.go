// Package addbookcopy implements the Add Book Copy to Circulation use case.
//
// Adding a book copy that already exists is a no-op, so the command can be retried safely.
package addbookcopy
