// Package core contains the domain of the example: book copies circulating in a public library.
//
// BookCopy is an event-sourced aggregate. Its business operations check rules first and then raise
// events such as BookCopyAddedToCirculation and BookCopyLentToReader, never CRUD-style updates.
// Its Apply is a closed type switch over these events.
//
// In Domain-Driven Design or Hexagonal Architecture terminology, this would be
// called the 'domain' layer.
package core
