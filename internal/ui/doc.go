// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for importing external audio into the library:
//  1. [SearchView] : Type a free-text query or paste a link
//  2. [CandidateListView] : Pick one of up to ten search candidates
//  3. [ConfirmView] : Tag the import with moods
//  4. [AcquireView] : Follow the client profile attempts as they happen
//  5. [ResultView] : Show the registered song or the failure and its hint
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the Importer, providing non-blocking status reporting during imports.
//
// Logs must go to a file while the TUI owns the terminal (see shared.NewFileLogger).
package ui
