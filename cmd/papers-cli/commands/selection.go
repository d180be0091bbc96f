package commands

import (
	"fmt"
	"sort"
	"strings"

	"pastpapers-backend/internal/papers"

	"github.com/antzucaro/matchr"
	"github.com/spf13/cobra"
)

// subjectThreshold is the minimum Jaro-Winkler similarity a fuzzy subject
// query has to reach.
const subjectThreshold = 0.8

type subjectMatch struct {
	subject    papers.Subject
	similarity float64
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// rankSubjects orders subjects by similarity to query, best first. A subject
// whose name contains the query outright is ranked as an exact match.
func rankSubjects(subjects []papers.Subject, query string) []subjectMatch {
	query = normalizeName(query)
	matches := make([]subjectMatch, len(subjects))
	for i, s := range subjects {
		name := normalizeName(s.Name)
		similarity := matchr.JaroWinkler(name, query, false)
		if strings.Contains(name, query) {
			similarity = 1
		}
		matches[i] = subjectMatch{subject: s, similarity: similarity}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].similarity > matches[j].similarity
	})
	return matches
}

// MatchSubject picks the subject best matching query. Several exact matches
// or no match above the threshold is an error naming the closest candidates.
func MatchSubject(subjects []papers.Subject, query string) (papers.Subject, error) {
	matches := rankSubjects(subjects, query)
	if len(matches) == 0 {
		return papers.Subject{}, fmt.Errorf("no subjects to match '%s' against", query)
	}

	candidates := func() string {
		var names []string
		for i := 0; i < len(matches) && i < 3; i++ {
			names = append(names, matches[i].subject.Name)
		}
		return strings.Join(names, ", ")
	}

	best := matches[0]
	if best.similarity < subjectThreshold {
		return papers.Subject{}, fmt.Errorf("no subject matches '%s', closest: %s", query, candidates())
	}
	if best.similarity == 1 && len(matches) > 1 && matches[1].similarity == 1 {
		for _, m := range matches {
			if m.similarity == 1 && normalizeName(m.subject.Name) == normalizeName(query) {
				return m.subject, nil
			}
		}
		return papers.Subject{}, fmt.Errorf("'%s' is ambiguous: %s", query, candidates())
	}
	return best.subject, nil
}

type selection struct {
	source     string
	board      string
	level      string
	subject    string
	subjectUrl string
	category   string
}

func (s *selection) register(cmd *cobra.Command, withSubject bool) {
	flags := cmd.Flags()
	flags.StringVar(&s.source, "source", string(papers.SOURCE_XTREMEPAPERS), "Source to browse: xtremepapers or papacambridge.")
	flags.StringVar(&s.board, "board", string(papers.BOARD_CAIE), "Exam board: CAIE or Edexcel.")
	flags.StringVar(&s.level, "level", "", "Qualification level, ex. 'IGCSE' or 'Advanced Level'.")
	if !withSubject {
		return
	}
	flags.StringVar(&s.subject, "subject", "", "Subject name, matched fuzzily against the subject listing.")
	flags.StringVar(&s.subjectUrl, "subject-url", "", "Subject listing url, skips the subject lookup.")
	flags.StringVar(&s.category, "type", "", "Only keep documents of this type, ex. 'qp', 'ms_2' or 'misc'.")
}

func (s selection) parse() (papers.SourceID, papers.Board, error) {
	source, err := papers.ParseSourceID(s.source)
	if err != nil {
		return "", "", err
	}
	board, err := papers.ParseBoard(s.board)
	if err != nil {
		return "", "", err
	}
	return source, board, nil
}

func (s selection) parseLevel(board papers.Board) (papers.Level, error) {
	if s.level == "" {
		return "", fmt.Errorf("--level is required, one of: %v", papers.LevelsFor(board))
	}
	return papers.ParseLevel(board, s.level)
}

// filter keeps the documents of the selected category. A category without a
// paper number ("qp") keeps every paper of that kind.
func (s selection) filter(docs []papers.CategorizedDocument) ([]papers.CategorizedDocument, error) {
	if s.category == "" {
		return docs, nil
	}
	want, err := papers.ParseCategory(s.category)
	if err != nil {
		return nil, err
	}

	var out []papers.CategorizedDocument
	for _, d := range docs {
		if d.Category.Kind != want.Kind {
			continue
		}
		if want.Paper > 0 && d.Category.Paper != want.Paper {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func rawDocuments(docs []papers.CategorizedDocument) []papers.RawDocument {
	out := make([]papers.RawDocument, len(docs))
	for i, d := range docs {
		out[i] = d.RawDocument
	}
	return out
}
