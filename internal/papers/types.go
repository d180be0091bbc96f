// Package papers holds the domain model shared by the scrapers, the retrieval
// manager, the merge engine and the discovery orchestrator.
package papers

import (
	"context"
	"fmt"
	"strings"
)

type Board string

const (
	BOARD_CAIE    Board = "CAIE"
	BOARD_EDEXCEL Board = "Edexcel"
)

var boards = []Board{BOARD_CAIE, BOARD_EDEXCEL}

// ParseBoard matches a board name case-insensitively.
func ParseBoard(name string) (Board, error) {
	for _, b := range boards {
		if strings.EqualFold(strings.TrimSpace(name), string(b)) {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: unknown board '%s'", ErrInvalidRequest, name)
}

type Level string

const (
	LEVEL_IGCSE              Level = "IGCSE"
	LEVEL_O_LEVEL            Level = "O Level"
	LEVEL_AS_A_LEVEL         Level = "AS and A Level"
	LEVEL_INTERNATIONAL_GCSE Level = "International GCSE"
	LEVEL_ADVANCED_LEVEL     Level = "Advanced Level"
)

var levels = map[Board][]Level{
	BOARD_CAIE:    {LEVEL_IGCSE, LEVEL_O_LEVEL, LEVEL_AS_A_LEVEL},
	BOARD_EDEXCEL: {LEVEL_INTERNATIONAL_GCSE, LEVEL_ADVANCED_LEVEL},
}

// LevelsFor returns the levels a board offers, in display order.
func LevelsFor(board Board) []Level {
	return append([]Level(nil), levels[board]...)
}

// ParseLevel matches a level of the given board case-insensitively, the
// url-encoded spelling ("O+Level") is accepted as well.
func ParseLevel(board Board, name string) (Level, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "+", " "))
	for _, l := range levels[board] {
		if strings.EqualFold(name, string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: board %s has no level '%s'", ErrInvalidRequest, board, name)
}

// ValidLevel reports whether the board offers the level.
func ValidLevel(board Board, level Level) bool {
	for _, l := range levels[board] {
		if l == level {
			return true
		}
	}
	return false
}

type SourceID string

const (
	SOURCE_XTREMEPAPERS  SourceID = "xtremepapers"
	SOURCE_PAPACAMBRIDGE SourceID = "papacambridge"
)

func ParseSourceID(name string) (SourceID, error) {
	switch SourceID(strings.ToLower(strings.TrimSpace(name))) {
	case SOURCE_XTREMEPAPERS:
		return SOURCE_XTREMEPAPERS, nil
	case SOURCE_PAPACAMBRIDGE:
		return SOURCE_PAPACAMBRIDGE, nil
	}
	return "", fmt.Errorf("%w: unknown source '%s'", ErrInvalidRequest, name)
}

// Serves reports whether a source publishes papers for the board.
func (s SourceID) Serves(board Board) bool {
	switch s {
	case SOURCE_XTREMEPAPERS:
		return board == BOARD_CAIE || board == BOARD_EDEXCEL
	case SOURCE_PAPACAMBRIDGE:
		return board == BOARD_CAIE
	}
	return false
}

// BoardOption is a (source, board) pair that can be browsed.
type BoardOption struct {
	Id     string   `json:"id"`
	Name   string   `json:"name"`
	Source SourceID `json:"source"`
	Board  Board    `json:"board"`
}

func BoardOptions() []BoardOption {
	return []BoardOption{
		{
			Id:     "xtremepapers_caie",
			Name:   "Cambridge (CAIE) - Xtremepapers",
			Source: SOURCE_XTREMEPAPERS,
			Board:  BOARD_CAIE,
		},
		{
			Id:     "xtremepapers_edexcel",
			Name:   "Edexcel - Xtremepapers",
			Source: SOURCE_XTREMEPAPERS,
			Board:  BOARD_EDEXCEL,
		},
		{
			Id:     "papacambridge_caie",
			Name:   "Cambridge (CAIE) - Papacambridge",
			Source: SOURCE_PAPACAMBRIDGE,
			Board:  BOARD_CAIE,
		},
	}
}

// Subject is a course area under a board/level, Url links to its document listing.
type Subject struct {
	Name string `json:"name"`
	Url  string `json:"url"`
}

// Session is an exam sitting (or year) folder between a subject and its documents.
type Session struct {
	Name string `json:"name"`
	Url  string `json:"url"`
}

// RawDocument is a single discovered file. Filenames are not unique across
// sessions, Session names the year or session folder the file was listed
// under and is empty when the listing had none.
type RawDocument struct {
	Filename string `json:"name"`
	Url      string `json:"url"`
	Session  string `json:"session,omitempty"`
}

type CategorizedDocument struct {
	RawDocument
	Category Category `json:"type"`
}

// LocalArtifact is a retrieved document, Path always lies inside the download root.
type LocalArtifact struct {
	Path string
}

type MergedArtifact struct {
	Path string
	// Pages is the page count of the merged output.
	Pages int
	// Skipped lists the inputs that did not exist at merge time.
	Skipped []string
}

// Source discovers subjects and documents on one site.
type Source interface {
	ID() SourceID
	// ListSubjects returns the subjects of a board/level. A transport or parse
	// failure of the listing page is returned as an error wrapping ErrTransport
	// or ErrParse.
	ListSubjects(ctx context.Context, board Board, level Level) ([]Subject, error)
	// ListDocuments returns every document reachable from a subject listing,
	// recursing through session/year folders when the site has them. Failures
	// of inner pages are logged and contribute nothing.
	ListDocuments(ctx context.Context, subjectUrl string, board Board) ([]RawDocument, error)
}
