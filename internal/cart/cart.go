// Package cart holds the in-progress, unsubmitted selections for each table.
//
// The cart is a flat multiset of menu-item selections. Every dependent view
// reads the same shared Store and subscribes to it directly, so there is no
// duplicated client-side storage to keep in sync.
package cart

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is the snapshot of a menu item a selection refers to. Available is the
// stock on hand at the time of selection and caps how many units can be added.
type Item struct {
	ID        uuid.UUID
	Name      string
	Price     decimal.Decimal
	Available int32
}

// Line is one grouped cart entry: a distinct item with its total unit count.
type Line struct {
	Item     Item
	Quantity int32
}

// Event notifies subscribers that a table's cart changed.
type Event struct {
	TableID   int32
	ItemCount int
}

// StockExceededError signals that a selection would push an item's cart
// quantity past its available stock.
type StockExceededError struct {
	Name      string
	Available int32
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("stock exceeded for %q: only %d available", e.Name, e.Available)
}

// Store is the shared observable cart state, one logical cart per table.
type Store struct {
	mu    sync.RWMutex
	carts map[int32][]Item
	subs  map[int32]map[chan Event]struct{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		carts: make(map[int32][]Item),
		subs:  make(map[int32]map[chan Event]struct{}),
	}
}

// AddSelection appends one unit of item to the table's cart. It fails with a
// *StockExceededError, leaving the cart unchanged, when the cart already holds
// as many units of the item as there is stock.
func (s *Store) AddSelection(tableID int32, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int32
	for _, sel := range s.carts[tableID] {
		if sel.ID == item.ID {
			count++
		}
	}
	if count >= item.Available {
		return &StockExceededError{Name: item.Name, Available: item.Available}
	}

	s.carts[tableID] = append(s.carts[tableID], item)
	s.notifyLocked(tableID)
	return nil
}

// RemoveOneUnit removes one occurrence of itemID from the table's cart.
// Removing an absent item is a no-op, not an error. The most recently added
// unit is removed so the first-seen grouping order stays stable.
func (s *Store) RemoveOneUnit(tableID int32, itemID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sels := s.carts[tableID]
	for i := len(sels) - 1; i >= 0; i-- {
		if sels[i].ID == itemID {
			s.carts[tableID] = append(sels[:i], sels[i+1:]...)
			s.notifyLocked(tableID)
			return
		}
	}
}

// Lines groups the table's flat selections into one line per distinct item,
// preserving the order in which items were first added.
func (s *Store) Lines(tableID int32) []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lines []Line
	index := make(map[uuid.UUID]int)
	for _, sel := range s.carts[tableID] {
		if i, ok := index[sel.ID]; ok {
			lines[i].Quantity++
			continue
		}
		index[sel.ID] = len(lines)
		lines = append(lines, Line{Item: sel, Quantity: 1})
	}
	return lines
}

// Total sums the unit price of every selection in the table's cart.
func (s *Store) Total(tableID int32) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, sel := range s.carts[tableID] {
		total = total.Add(sel.Price)
	}
	return total
}

// ItemCount returns the flat unit count, not the number of distinct lines.
func (s *Store) ItemCount(tableID int32) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts[tableID])
}

// Clear empties the table's cart, typically after a successful checkout.
func (s *Store) Clear(tableID int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.carts[tableID]) == 0 {
		return
	}
	delete(s.carts, tableID)
	s.notifyLocked(tableID)
}

// Subscribe registers for change events on the table's cart. The returned
// cancel func must be called when the subscriber goes away; it closes the
// channel and removes the registration.
func (s *Store) Subscribe(tableID int32) (<-chan Event, func()) {
	ch := make(chan Event, 8)

	s.mu.Lock()
	if s.subs[tableID] == nil {
		s.subs[tableID] = make(map[chan Event]struct{})
	}
	s.subs[tableID][ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[tableID][ch]; !ok {
			return
		}
		delete(s.subs[tableID], ch)
		if len(s.subs[tableID]) == 0 {
			delete(s.subs, tableID)
		}
		close(ch)
	}
	return ch, cancel
}

// notifyLocked fans the change event out to the table's subscribers.
// Slow subscribers are skipped rather than blocking a cart mutation.
func (s *Store) notifyLocked(tableID int32) {
	ev := Event{TableID: tableID, ItemCount: len(s.carts[tableID])}
	for ch := range s.subs[tableID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
