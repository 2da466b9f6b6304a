package draft

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/larder-app/larder/internal/domain"
)

// newKey is swapped in tests that need predictable keys.
var newKey = uuid.NewString

// Chip is one ingredient or step. Key identifies it across edits and drags.
type Chip struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// ChipList is the editable list behind the ingredient and step fields.
// Every method returns a new list and leaves the receiver untouched.
type ChipList struct {
	items   []Chip
	editing bool
	cursor  int
	input   string
}

// NewChipList seeds a list from committed labels, skipping blank ones.
func NewChipList(labels []string) ChipList {
	var c ChipList
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			c.items = append(c.items, Chip{Key: newKey(), Label: l})
		}
	}
	return c
}

// Add appends a chip. Blank labels are ignored.
func (c ChipList) Add(label string) ChipList {
	label = strings.TrimSpace(label)
	if label == "" {
		return c
	}
	return ChipList{items: append(slices.Clone(c.items), Chip{Key: newKey(), Label: label})}
}

// BeginEdit points the cursor at index and seeds the input buffer with its
// label. Any other uncommitted input is dropped.
func (c ChipList) BeginEdit(index int) (ChipList, error) {
	if index < 0 || index >= len(c.items) {
		return c, fmt.Errorf("edit item %d of %d: %w", index, len(c.items), domain.ErrIndexOutOfRange)
	}
	return ChipList{items: c.items, editing: true, cursor: index, input: c.items[index].Label}, nil
}

// SetInput updates the uncommitted input buffer.
func (c ChipList) SetInput(text string) ChipList {
	c.input = text
	return c
}

// CommitEdit replaces the label under the cursor. A blank label leaves the
// edit pending; it never deletes the item.
func (c ChipList) CommitEdit(label string) (ChipList, error) {
	if !c.editing {
		return c, domain.ErrNoEditInProgress
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return c, nil
	}
	items := slices.Clone(c.items)
	items[c.cursor].Label = label
	return ChipList{items: items}, nil
}

// Submit is the "Add" / "Save Change" button: commit when editing, add
// otherwise.
func (c ChipList) Submit(label string) ChipList {
	if c.editing {
		next, _ := c.CommitEdit(label)
		return next
	}
	return c.Add(label)
}

// Remove deletes the chip at index. If it was being edited the cursor and
// buffer are cleared; a cursor behind it shifts so it keeps its item.
func (c ChipList) Remove(index int) (ChipList, error) {
	if index < 0 || index >= len(c.items) {
		return c, fmt.Errorf("remove item %d of %d: %w", index, len(c.items), domain.ErrIndexOutOfRange)
	}
	next := ChipList{items: slices.Delete(slices.Clone(c.items), index, index+1)}
	switch {
	case !c.editing || c.cursor == index:
	case c.cursor > index:
		next.editing, next.cursor, next.input = true, c.cursor-1, c.input
	default:
		next.editing, next.cursor, next.input = true, c.cursor, c.input
	}
	return next, nil
}

// Reorder applies a drag result. keys must contain exactly the current keys.
// The cursor follows the edited chip to its new position.
func (c ChipList) Reorder(keys []string) (ChipList, error) {
	if len(keys) != len(c.items) {
		return c, fmt.Errorf("reorder %d keys over %d items: %w", len(keys), len(c.items), domain.ErrInvalidPermutation)
	}
	byKey := make(map[string]Chip, len(c.items))
	for _, it := range c.items {
		byKey[it.Key] = it
	}
	items := make([]Chip, 0, len(keys))
	for _, k := range keys {
		it, ok := byKey[k]
		if !ok {
			return c, fmt.Errorf("reorder key %q: %w", k, domain.ErrInvalidPermutation)
		}
		delete(byKey, k)
		items = append(items, it)
	}

	next := ChipList{items: items}
	if c.editing {
		editedKey := c.items[c.cursor].Key
		next.editing = true
		next.cursor = slices.IndexFunc(items, func(it Chip) bool { return it.Key == editedKey })
		next.input = c.input
	}
	return next, nil
}

// Move drags the chip at from to position to.
func (c ChipList) Move(from, to int) (ChipList, error) {
	order, err := moveOrder(len(c.items), from, to)
	if err != nil {
		return c, fmt.Errorf("move item: %w", err)
	}
	keys := make([]string, len(order))
	for i, from := range order {
		keys[i] = c.items[from].Key
	}
	return c.Reorder(keys)
}

// Labels is the plain label sequence persisted with the recipe.
func (c ChipList) Labels() []string {
	labels := make([]string, len(c.items))
	for i, it := range c.items {
		labels[i] = it.Label
	}
	return labels
}

func (c ChipList) Items() []Chip { return slices.Clone(c.items) }

func (c ChipList) Len() int { return len(c.items) }

// Editing returns the cursor position, if an edit is pending.
func (c ChipList) Editing() (int, bool) { return c.cursor, c.editing }

// Input returns the uncommitted input buffer.
func (c ChipList) Input() string { return c.input }

// Keys returns chip keys in order.
func (c ChipList) Keys() []string {
	keys := make([]string, len(c.items))
	for i, it := range c.items {
		keys[i] = it.Key
	}
	return keys
}
