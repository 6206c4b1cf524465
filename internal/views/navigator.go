// Package views maps the console's page ids onto what the operator sees and
// renders each page for the selected tenant.
package views

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Page is one of the three console pages.
type Page string

const (
	Analytics   Page = "analytics"
	Adjustments Page = "adjustments"
	Settings    Page = "settings"
)

// Pages lists the pages in sidebar order.
var Pages = []Page{Analytics, Adjustments, Settings}

// ErrUnknownPage is returned by ParsePage.
var ErrUnknownPage = errors.New("views: unknown page")

// ParsePage normalizes s to a Page.
func ParsePage(s string) (Page, error) {
	p := Page(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Pages {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPage, s)
}

// Location is the navigator state.
type Location struct {
	Page           Page `json:"page"`
	ShowCreateFlow bool `json:"showCreateFlow"`
}

// Navigator tracks the current page and whether the create-business flow
// covers it. Navigation is never blocked by a missing tenant; pages degrade
// to placeholders instead.
type Navigator struct {
	mu         sync.Mutex
	current    Page
	showCreate bool
}

// NewNavigator starts on Analytics.
func NewNavigator() *Navigator {
	return &Navigator{current: Analytics}
}

// Location returns the current state.
func (n *Navigator) Location() Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Location{Page: n.current, ShowCreateFlow: n.showCreate}
}

// Navigate switches the page. An open create flow stays on top.
func (n *Navigator) Navigate(p Page) (Location, error) {
	if _, err := ParsePage(string(p)); err != nil {
		return n.Location(), err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = p
	return Location{Page: n.current, ShowCreateFlow: n.showCreate}, nil
}

// OpenCreateFlow shows the create-business flow over the current page.
func (n *Navigator) OpenCreateFlow() Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.showCreate = true
	return Location{Page: n.current, ShowCreateFlow: true}
}

// CancelCreateFlow leaves the create flow and restores the page underneath.
func (n *Navigator) CancelCreateFlow() Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.showCreate = false
	return Location{Page: n.current}
}

// CompleteCreateFlow leaves the create flow after a tenant was created and
// lands on Analytics.
func (n *Navigator) CompleteCreateFlow() Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.showCreate = false
	n.current = Analytics
	return Location{Page: n.current}
}
