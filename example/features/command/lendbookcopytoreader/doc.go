// Package lendbookcopytoreader implements the Lend Book Copy to Reader use case.
//
// The copy must be in circulation and on the shelf, and the reader must stay below core.MaxBooksLentPerReader.
// The lending limit is checked against a LendingPolicy, normally the readmodel.LentBooks projection.
package lendbookcopytoreader
