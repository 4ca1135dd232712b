// Package removebookcopy implements the Remove Book Copy from Circulation use case.
//
// A copy can only be removed while it is on the shelf.
package removebookcopy
