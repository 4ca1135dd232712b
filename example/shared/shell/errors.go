package shell

import (
	"errors"
)

// ErrBookCopyNotFound is returned by command handlers for commands on a book copy that was never added.
var ErrBookCopyNotFound = errors.New("book copy not found")
