package commands

import (
	"fmt"
	"strings"

	"pastpapers-backend/internal/papers"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	subjectsSel.register(subjectsCmd, false)
	subjectsCmd.Flags().StringVar(&subjectsFilter, "filter", "", "Only list subjects whose name contains this text.")
	papersSel.register(papersCmd, true)

	rootCmd.AddCommand(boardsCmd, levelsCmd, subjectsCmd, papersCmd)
}

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "Lists the (source, board) pairs that can be browsed.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		t := newTable()
		t.AppendHeader(table.Row{"Id", "Name", "Source", "Board"})
		for _, opt := range papers.BoardOptions() {
			t.AppendRow(table.Row{opt.Id, opt.Name, opt.Source, opt.Board})
		}
		t.Render()
	},
}

var levelsCmd = &cobra.Command{
	Use:   "levels <board>",
	Short: "Lists the levels offered by a board.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		board, err := papers.ParseBoard(args[0])
		if err != nil {
			return err
		}
		for _, level := range papers.LevelsFor(board) {
			fmt.Println(level)
		}
		return nil
	},
}

var (
	subjectsSel    selection
	subjectsFilter string
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects --level <level> [--source <source>] [--board <board>]",
	Short: "Lists the subjects of a board and level.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, board, err := subjectsSel.parse()
		if err != nil {
			return err
		}
		level, err := subjectsSel.parseLevel(board)
		if err != nil {
			return err
		}

		subjects, err := openStack(cmd).Orchestrator.ListSubjects(cmd.Context(), source, board, level)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"#", "Subject", "Url"})
		filter := normalizeName(subjectsFilter)
		for i, s := range subjects {
			if filter != "" && !strings.Contains(normalizeName(s.Name), filter) {
				continue
			}
			t.AppendRow(table.Row{i + 1, s.Name, s.Url})
		}
		t.Render()
		return nil
	},
}

// documents resolves a selection down to its categorized documents.
func (s selection) documents(cmd *cobra.Command) (papers.Board, []papers.CategorizedDocument, error) {
	source, board, err := s.parse()
	if err != nil {
		return "", nil, err
	}
	orchestrator := openStack(cmd).Orchestrator

	subjectUrl := s.subjectUrl
	if subjectUrl == "" {
		if s.subject == "" {
			return "", nil, fmt.Errorf("either --subject or --subject-url is required")
		}
		level, err := s.parseLevel(board)
		if err != nil {
			return "", nil, err
		}
		subjects, err := orchestrator.ListSubjects(cmd.Context(), source, board, level)
		if err != nil {
			return "", nil, err
		}
		subject, err := MatchSubject(subjects, s.subject)
		if err != nil {
			return "", nil, err
		}
		fmt.Printf("Using subject '%s'\n", subject.Name)
		subjectUrl = subject.Url
	}

	docs, err := orchestrator.ListDocuments(cmd.Context(), source, subjectUrl, board)
	if err != nil {
		return "", nil, err
	}
	docs, err = s.filter(docs)
	if err != nil {
		return "", nil, err
	}
	if len(docs) == 0 {
		return "", nil, fmt.Errorf("no papers found")
	}
	return board, docs, nil
}

var papersSel selection

var papersCmd = &cobra.Command{
	Use:   "papers (--subject <name> --level <level> | --subject-url <url>) [--type <type>]",
	Short: "Lists the categorized documents of a subject.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, docs, err := papersSel.documents(cmd)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Name", "Type", "Url"})
		for _, d := range docs {
			t.AppendRow(table.Row{d.Filename, d.Category.String(), d.Url})
		}
		t.AppendFooter(table.Row{"", "Total", len(docs)})
		t.Render()
		return nil
	},
}
