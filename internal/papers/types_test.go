package papers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBoard(t *testing.T) {
	board, err := ParseBoard("caie")
	require.NoError(t, err)
	require.Equal(t, BOARD_CAIE, board)

	board, err = ParseBoard(" EDEXCEL ")
	require.NoError(t, err)
	require.Equal(t, BOARD_EDEXCEL, board)

	_, err = ParseBoard("OCR")
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel(BOARD_CAIE, "O+Level")
	require.NoError(t, err)
	require.Equal(t, LEVEL_O_LEVEL, level)

	level, err = ParseLevel(BOARD_CAIE, "as and a level")
	require.NoError(t, err)
	require.Equal(t, LEVEL_AS_A_LEVEL, level)

	level, err = ParseLevel(BOARD_EDEXCEL, "International+GCSE")
	require.NoError(t, err)
	require.Equal(t, LEVEL_INTERNATIONAL_GCSE, level)

	_, err = ParseLevel(BOARD_EDEXCEL, "IGCSE")
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSourceServes(t *testing.T) {
	require.True(t, SOURCE_XTREMEPAPERS.Serves(BOARD_CAIE))
	require.True(t, SOURCE_XTREMEPAPERS.Serves(BOARD_EDEXCEL))
	require.True(t, SOURCE_PAPACAMBRIDGE.Serves(BOARD_CAIE))
	require.False(t, SOURCE_PAPACAMBRIDGE.Serves(BOARD_EDEXCEL))

	for _, option := range BoardOptions() {
		require.True(t, option.Source.Serves(option.Board), option.Id)
	}
}

func TestErrorKinds(t *testing.T) {
	var err error = &PathViolationError{Requested: "../etc/passwd", Reason: "contains a traversal segment"}
	require.ErrorIs(t, err, ErrPathViolation)
	require.NotErrorIs(t, err, ErrRetrievalFailure)

	err = &RetrievalError{Url: "https://example.com/a.pdf", Filename: "a.pdf", Err: ErrTransport}
	require.ErrorIs(t, err, ErrRetrievalFailure)
	require.ErrorIs(t, err, ErrTransport)
	require.Contains(t, err.Error(), "a.pdf")
}

func TestValidLevel(t *testing.T) {
	require.True(t, ValidLevel(BOARD_CAIE, LEVEL_IGCSE))
	require.False(t, ValidLevel(BOARD_CAIE, LEVEL_ADVANCED_LEVEL))
	require.True(t, ValidLevel(BOARD_EDEXCEL, LEVEL_ADVANCED_LEVEL))
	require.False(t, ValidLevel(Board("OCR"), LEVEL_IGCSE))
}
