package editor

import (
	"sync"

	"github.com/appforge/flowcanvas/pkg/catalog"
)

// Picker is the insertion picker's view state: a query, a category
// filter, and a highlighted row over the resolved template list.
type Picker struct {
	mu sync.Mutex

	open      bool
	query     string
	category  string
	highlight int
}

// IsOpen reports whether the picker is showing.
func (p *Picker) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.open
}

// Open shows the picker with cleared filters.
func (p *Picker) Open() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.open = true
	p.query = ""
	p.category = catalog.CategoryAll
	p.highlight = 0
}

// Close hides the picker.
func (p *Picker) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.open = false
}

// SetQuery updates the search text and resets the highlight.
func (p *Picker) SetQuery(query string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.query = query
	p.highlight = 0
}

// SetCategory updates the category filter and resets the highlight.
func (p *Picker) SetCategory(category string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.category = category
	p.highlight = 0
}

// Matches resolves the catalog against the current filters, in catalog
// declaration order.
func (p *Picker) Matches() []catalog.Template {
	p.mu.Lock()
	defer p.mu.Unlock()

	return catalog.Resolve(p.query, p.category)
}

// MoveHighlight shifts the highlighted row, clamped to the match list.
func (p *Picker) MoveHighlight(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	matches := catalog.Resolve(p.query, p.category)
	if len(matches) == 0 {
		p.highlight = 0

		return
	}

	p.highlight += delta
	if p.highlight < 0 {
		p.highlight = 0
	}

	if p.highlight >= len(matches) {
		p.highlight = len(matches) - 1
	}
}

// Highlighted returns the currently highlighted template.
func (p *Picker) Highlighted() (catalog.Template, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	matches := catalog.Resolve(p.query, p.category)
	if !p.open || len(matches) == 0 || p.highlight >= len(matches) {
		return catalog.Template{}, false
	}

	return matches[p.highlight], true
}

// KeyEvent is one keyboard event as delivered by the host UI.
type KeyEvent struct {
	Key         string
	Ctrl        bool
	Meta        bool
	Shift       bool
	InTextInput bool
}

// KeyAction reports what a key event dispatched to.
type KeyAction string

const (
	KeyActionNone           KeyAction = "none"
	KeyActionPickerOpened   KeyAction = "picker_opened"
	KeyActionPickerClosed   KeyAction = "picker_closed"
	KeyActionTemplateChosen KeyAction = "template_chosen"
	KeyActionUndo           KeyAction = "undo"
	KeyActionRedo           KeyAction = "redo"
)

// pickerOpenKey opens the insert picker when focus is outside a text
// input.
const pickerOpenKey = "a"

// HandleKey is the single global keyboard dispatcher: the picker's own
// Escape/Enter handling wins while it is open, then undo/redo
// modifiers, then the bare picker-open key.
func (s *Session) HandleKey(event KeyEvent) KeyAction {
	if s.Picker.IsOpen() {
		switch event.Key {
		case "Escape":
			s.Picker.Close()

			return KeyActionPickerClosed
		case "Enter":
			template, ok := s.Picker.Highlighted()
			if !ok {
				return KeyActionNone
			}

			s.Picker.Close()

			if _, err := s.InsertTemplateStep(template.ID, nil); err != nil {
				s.logger.Warn("failed to insert picked template", "template_id", template.ID, "error", err)

				return KeyActionNone
			}

			return KeyActionTemplateChosen
		}

		return KeyActionNone
	}

	modifier := event.Ctrl || event.Meta

	switch {
	case modifier && event.Key == "z" && event.Shift:
		s.Redo()

		return KeyActionRedo
	case modifier && event.Key == "z":
		s.Undo()

		return KeyActionUndo
	case modifier && event.Key == "y":
		s.Redo()

		return KeyActionRedo
	case !modifier && !event.InTextInput && event.Key == pickerOpenKey:
		s.Picker.Open()

		return KeyActionPickerOpened
	}

	return KeyActionNone
}
