package widget

import (
	"fmt"
	"slices"
	"sync"
)

// SelectState is the open state of a select
type SelectState string

const (
	SelectClosed SelectState = "closed"
	SelectOpen   SelectState = "open"
)

// Item is one option of a select
type Item[T comparable] struct {
	Value    T
	Label    string
	Disabled bool
}

// Select is a single or multiple choice list with keyboard-style
// highlighting. Disabled items are never highlighted or selected.
type Select[T comparable] interface {
	State() SelectState
	IsOpen() bool
	Disabled() bool
	Items() []Item[T]
	Value() []T
	SelectedItems() []Item[T]
	HighlightedIndex() int
	HighlightedItem() (Item[T], bool)

	Open()
	Close()
	Toggle()
	HighlightNext()
	HighlightPrev()
	HighlightFirst()
	HighlightLast()
	Highlight(index int)
	SelectHighlighted()
	SelectValue(v T)
	ClearValue()
	SetItems(items []Item[T])
	SetDisabled(disabled bool)

	TriggerProps() Props
	ContentProps() Props
	ItemProps(item Item[T]) Props
}

// SelectProps configure a Select
type SelectProps[T comparable] struct {
	ID       string
	Items    []Item[T]
	Multiple bool
	// Loop wraps highlighting from the last item to the first and back
	Loop     bool
	Disabled bool
	// KeepOpen leaves a single select open after a choice
	KeepOpen     bool
	DefaultValue []T

	OnValueChange func(value []T)
	OnOpenChange  func(open bool)
}

type selectMachine[T comparable] struct {
	mu          sync.Mutex
	props       SelectProps[T]
	items       []Item[T]
	state       SelectState
	highlighted int
	value       []T
	disabled    bool
}

// NewSelect creates a closed select
func NewSelect[T comparable](props SelectProps[T]) Select[T] {
	if props.ID == "" {
		props.ID = "select"
	}
	return &selectMachine[T]{
		props:       props,
		items:       slices.Clone(props.Items),
		state:       SelectClosed,
		highlighted: -1,
		value:       slices.Clone(props.DefaultValue),
		disabled:    props.Disabled,
	}
}

func (s *selectMachine[T]) State() SelectState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *selectMachine[T]) IsOpen() bool {
	return s.State() == SelectOpen
}

func (s *selectMachine[T]) Disabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled
}

func (s *selectMachine[T]) Items() []Item[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

func (s *selectMachine[T]) Value() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.value)
}

func (s *selectMachine[T]) SelectedItems() []Item[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Item[T]
	for _, v := range s.value {
		if i := s.indexOf(v); i >= 0 {
			out = append(out, s.items[i])
		}
	}
	return out
}

func (s *selectMachine[T]) HighlightedIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highlighted
}

func (s *selectMachine[T]) HighlightedItem() (Item[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.highlighted < 0 || s.highlighted >= len(s.items) {
		return Item[T]{}, false
	}
	return s.items[s.highlighted], true
}

// Open opens the list and highlights the first selected item, or the first
// enabled item when nothing is selected.
func (s *selectMachine[T]) Open() {
	s.mu.Lock()
	if s.disabled || s.state == SelectOpen {
		s.mu.Unlock()
		return
	}
	s.state = SelectOpen
	s.highlighted = -1
	if len(s.value) > 0 {
		if i := s.indexOf(s.value[0]); i >= 0 && !s.items[i].Disabled {
			s.highlighted = i
		}
	}
	if s.highlighted < 0 {
		s.highlighted = s.nextEnabled(-1, 1, false)
	}
	cb := s.props.OnOpenChange
	s.mu.Unlock()

	if cb != nil {
		cb(true)
	}
}

func (s *selectMachine[T]) Close() {
	s.mu.Lock()
	if s.state == SelectClosed {
		s.mu.Unlock()
		return
	}
	s.state = SelectClosed
	s.highlighted = -1
	cb := s.props.OnOpenChange
	s.mu.Unlock()

	if cb != nil {
		cb(false)
	}
}

func (s *selectMachine[T]) Toggle() {
	if s.IsOpen() {
		s.Close()
		return
	}
	s.Open()
}

// HighlightNext moves down; on a closed select it opens the list instead.
func (s *selectMachine[T]) HighlightNext() {
	s.move(1)
}

// HighlightPrev moves up; on a closed select it opens the list instead.
func (s *selectMachine[T]) HighlightPrev() {
	s.move(-1)
}

func (s *selectMachine[T]) move(dir int) {
	if !s.IsOpen() {
		s.Open()
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if next := s.nextEnabled(s.highlighted, dir, s.props.Loop); next >= 0 {
		s.highlighted = next
	}
}

func (s *selectMachine[T]) HighlightFirst() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SelectOpen {
		s.highlighted = s.nextEnabled(-1, 1, false)
	}
}

func (s *selectMachine[T]) HighlightLast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SelectOpen {
		s.highlighted = s.nextEnabled(len(s.items), -1, false)
	}
}

// Highlight highlights index if it names an enabled item of an open list
func (s *selectMachine[T]) Highlight(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SelectOpen || index < 0 || index >= len(s.items) || s.items[index].Disabled {
		return
	}
	s.highlighted = index
}

// nextEnabled finds the next enabled index from start in dir, or -1.
func (s *selectMachine[T]) nextEnabled(start, dir int, loop bool) int {
	n := len(s.items)
	if n == 0 {
		return -1
	}
	if start < 0 && dir < 0 {
		start = n
	}
	i := start
	for step := 0; step < n; step++ {
		i += dir
		if i < 0 || i >= n {
			if !loop {
				return -1
			}
			i = (i + n) % n
		}
		if !s.items[i].Disabled {
			return i
		}
	}
	return -1
}

func (s *selectMachine[T]) indexOf(v T) int {
	return slices.IndexFunc(s.items, func(it Item[T]) bool { return it.Value == v })
}

func (s *selectMachine[T]) SelectHighlighted() {
	s.mu.Lock()
	i := s.highlighted
	if i < 0 || i >= len(s.items) {
		s.mu.Unlock()
		return
	}
	v := s.items[i].Value
	s.mu.Unlock()
	s.SelectValue(v)
}

// SelectValue chooses v. In a multiple select choosing a selected value
// removes it.
func (s *selectMachine[T]) SelectValue(v T) {
	s.mu.Lock()
	i := s.indexOf(v)
	if s.disabled || i < 0 || s.items[i].Disabled {
		s.mu.Unlock()
		return
	}

	changed := true
	if s.props.Multiple {
		if j := slices.Index(s.value, v); j >= 0 {
			s.value = slices.Delete(slices.Clone(s.value), j, j+1)
		} else {
			s.value = append(slices.Clone(s.value), v)
		}
	} else {
		changed = len(s.value) != 1 || s.value[0] != v
		s.value = []T{v}
	}
	value := slices.Clone(s.value)
	closeAfter := !s.props.Multiple && !s.props.KeepOpen && s.state == SelectOpen
	cb := s.props.OnValueChange
	s.mu.Unlock()

	if changed && cb != nil {
		cb(value)
	}
	if closeAfter {
		s.Close()
	}
}

func (s *selectMachine[T]) ClearValue() {
	s.mu.Lock()
	if len(s.value) == 0 {
		s.mu.Unlock()
		return
	}
	s.value = nil
	cb := s.props.OnValueChange
	s.mu.Unlock()

	if cb != nil {
		cb(nil)
	}
}

// SetItems replaces the options. Selected values that no longer exist are
// kept; the highlight is reset when it falls off the list, and an open list
// with nothing highlighted highlights its first enabled item.
func (s *selectMachine[T]) SetItems(items []Item[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = slices.Clone(items)
	lost := s.highlighted >= len(s.items) || (s.highlighted >= 0 && s.items[s.highlighted].Disabled)
	if lost || (s.state == SelectOpen && s.highlighted < 0) {
		s.highlighted = -1
		if s.state == SelectOpen {
			s.highlighted = s.nextEnabled(-1, 1, false)
		}
	}
}

// SetDisabled disables the select; disabling closes it.
func (s *selectMachine[T]) SetDisabled(disabled bool) {
	s.mu.Lock()
	s.disabled = disabled
	s.mu.Unlock()
	if disabled {
		s.Close()
	}
}

func (s *selectMachine[T]) contentID() string {
	return "select:" + s.props.ID + ":content"
}

func (s *selectMachine[T]) itemID(i int) string {
	return fmt.Sprintf("select:%s:option:%d", s.props.ID, i)
}

func (s *selectMachine[T]) TriggerProps() Props {
	s.mu.Lock()
	defer s.mu.Unlock()
	props := parts("select", "trigger")
	props["id"] = "select:" + s.props.ID + ":trigger"
	props["type"] = "button"
	props["role"] = "combobox"
	props["aria-haspopup"] = "listbox"
	props["aria-expanded"] = s.state == SelectOpen
	props["aria-controls"] = s.contentID()
	props["disabled"] = s.disabled
	props["data-state"] = string(s.state)
	return props.flag("data-disabled", s.disabled).flag("data-placeholder-shown", len(s.value) == 0)
}

func (s *selectMachine[T]) ContentProps() Props {
	s.mu.Lock()
	defer s.mu.Unlock()
	props := parts("select", "content")
	props["id"] = s.contentID()
	props["role"] = "listbox"
	props["tabIndex"] = 0
	props["hidden"] = s.state != SelectOpen
	props["aria-multiselectable"] = s.props.Multiple
	props["data-state"] = string(s.state)
	if s.highlighted >= 0 {
		props["aria-activedescendant"] = s.itemID(s.highlighted)
	}
	return props
}

func (s *selectMachine[T]) ItemProps(item Item[T]) Props {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(item.Value)
	selected := slices.Contains(s.value, item.Value)
	disabled := item.Disabled || s.disabled
	state := "unchecked"
	if selected {
		state = "checked"
	}

	props := parts("select", "item")
	props["id"] = s.itemID(i)
	props["role"] = "option"
	props["aria-selected"] = selected
	props["aria-disabled"] = disabled
	props["data-value"] = fmt.Sprint(item.Value)
	props["data-state"] = state
	return props.flag("data-highlighted", i >= 0 && i == s.highlighted).flag("data-disabled", disabled)
}
