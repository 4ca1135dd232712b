package readmodel

import (
	"context"
	"sort"
	"sync"

	"github.com/AntonStoeckl/aggregate-eventstore-go/dispatching"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/core"
)

// SubscriberName is the name the projection subscribes under.
const SubscriberName = "readmodel.lent-books"

type bookEntry struct {
	isbn           core.ISBNString
	title          string
	added          bool
	removed        bool
	lentTo         core.ReaderIDString
	lendingVersion int
}

func (b *bookEntry) isInCirculation() bool {
	return b.added && !b.removed
}

// LentBooks projects which reader currently holds which book copy.
// It serves as core.LendingPolicy for the lending limit.
type LentBooks struct {
	mu    sync.RWMutex
	books map[core.BookIDString]*bookEntry
}

// NewLentBooks creates an empty projection.
func NewLentBooks() *LentBooks {
	return &LentBooks{books: make(map[core.BookIDString]*bookEntry)}
}

// Subscribe registers the projection for all BookCopy events.
func (p *LentBooks) Subscribe(routes *dispatching.Routes) {
	dispatching.Subscribe[core.BookCopyAddedToCirculation](routes, SubscriberName, p.whenAdded)
	dispatching.Subscribe[core.BookCopyLentToReader](routes, SubscriberName, p.whenLent)
	dispatching.Subscribe[core.BookCopyReturnedByReader](routes, SubscriberName, p.whenReturned)
	dispatching.Subscribe[core.BookCopyRemovedFromCirculation](routes, SubscriberName, p.whenRemoved)
}

func (p *LentBooks) whenAdded(_ context.Context, n dispatching.Notification[core.BookCopyAddedToCirculation]) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	book := p.entry(n.Event.AggregateID)
	book.isbn = n.Event.ISBN
	book.title = n.Event.Title
	book.added = true

	return nil
}

func (p *LentBooks) whenLent(_ context.Context, n dispatching.Notification[core.BookCopyLentToReader]) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	book := p.entry(n.Event.AggregateID)
	if n.Event.AggregateVersion > book.lendingVersion {
		book.lentTo = n.Event.ReaderID
		book.lendingVersion = n.Event.AggregateVersion
	}

	return nil
}

func (p *LentBooks) whenReturned(_ context.Context, n dispatching.Notification[core.BookCopyReturnedByReader]) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	book := p.entry(n.Event.AggregateID)
	if n.Event.AggregateVersion > book.lendingVersion {
		book.lentTo = ""
		book.lendingVersion = n.Event.AggregateVersion
	}

	return nil
}

func (p *LentBooks) whenRemoved(_ context.Context, n dispatching.Notification[core.BookCopyRemovedFromCirculation]) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entry(n.Event.AggregateID).removed = true

	return nil
}

// entry must be called with the write lock held.
func (p *LentBooks) entry(bookID core.BookIDString) *bookEntry {
	book, ok := p.books[bookID]
	if !ok {
		book = &bookEntry{}
		p.books[bookID] = book
	}

	return book
}

// BooksLentTo implements core.LendingPolicy.
func (p *LentBooks) BooksLentTo(ctx context.Context, readerID core.ReaderIDString) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return len(p.LentBooksOf(readerID)), nil
}

// LentBooksOf returns the ids of the copies readerID holds, sorted.
func (p *LentBooks) LentBooksOf(readerID core.ReaderIDString) []core.BookIDString {
	p.mu.RLock()
	defer p.mu.RUnlock()

	bookIDs := make([]core.BookIDString, 0)
	for bookID, book := range p.books {
		if book.lentTo == readerID {
			bookIDs = append(bookIDs, bookID)
		}
	}

	sort.Strings(bookIDs)

	return bookIDs
}

// BooksInCirculation returns the number of copies that were added and not removed.
func (p *LentBooks) BooksInCirculation() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, book := range p.books {
		if book.isInCirculation() {
			count++
		}
	}

	return count
}

// LentOut returns the number of copies currently lent to any reader.
func (p *LentBooks) LentOut() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, book := range p.books {
		if book.lentTo != "" {
			count++
		}
	}

	return count
}

var _ core.LendingPolicy = (*LentBooks)(nil)
