package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/nexus/internal/acquire"
	"github.com/desertthunder/nexus/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSearchCompleted MsgKind = iota
	MsgProgressUpdate
	MsgImportComplete
)

type searchResult struct {
	candidates []acquire.SearchCandidate
	err        error
}

// progressStep carries an update together with the channels to keep reading from.
type progressStep struct {
	update   tasks.ProgressUpdate
	progress <-chan tasks.ProgressUpdate
	done     <-chan importResult
}

type importResult struct {
	result *tasks.ImportResult
	err    error
}

// searchCompletedMsg is the constructor for [MsgSearchCompleted]
func searchCompletedMsg(candidates []acquire.SearchCandidate, err error) Msg {
	return Msg{kind: MsgSearchCompleted, data: searchResult{candidates, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate, progress <-chan tasks.ProgressUpdate, done <-chan importResult) Msg {
	return Msg{kind: MsgProgressUpdate, data: progressStep{update, progress, done}}
}

// importCompleteMsg is the constructor for [MsgImportComplete]
func importCompleteMsg(result *tasks.ImportResult, err error) Msg {
	return Msg{kind: MsgImportComplete, data: importResult{result, err}}
}
