// Package returnbookcopyfromreader implements the Return Book Copy from Reader use case.
//
// Only the reader the copy is lent to can return it.
package returnbookcopyfromreader
