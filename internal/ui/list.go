package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/nexus/internal/acquire"
)

var (
	_ list.Item = candidateItem{}
)

// candidateItem wraps [acquire.SearchCandidate] to implement [list.Item].
type candidateItem struct {
	candidate acquire.SearchCandidate
}

func (i candidateItem) FilterValue() string { return i.candidate.Title + " " + i.candidate.Artist }
func (i candidateItem) Title() string       { return i.candidate.Title }
func (i candidateItem) Description() string {
	return fmt.Sprintf("%s • %s", i.candidate.Artist, i.candidate.Duration)
}

func candidateItems(candidates []acquire.SearchCandidate) []list.Item {
	items := make([]list.Item, len(candidates))
	for i, c := range candidates {
		items[i] = candidateItem{candidate: c}
	}
	return items
}
