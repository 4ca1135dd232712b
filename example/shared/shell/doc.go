// Package shell holds the infrastructure side of the example: Book circulation in a public library
//
// It defines the command handler contract shared by the feature slices and the observability
// helpers the observable wrapper uses. Persistence and dispatching come from the repository and
// dispatching packages, the shell only wires them to use cases.
//
// In Domain-Driven Design or Hexagonal Architecture terminology, this would be
// called the 'infrastructure' layer.
package shell
