package papers

import (
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

type CategoryKind int

const (
	CATEGORY_MISC CategoryKind = iota
	CATEGORY_QUESTION_PAPER
	CATEGORY_MARK_SCHEME
)

// Category classifies a document, Paper is 0 when no paper number is known.
type Category struct {
	Kind  CategoryKind
	Paper int
}

func QuestionPaper(paper int) Category {
	return Category{Kind: CATEGORY_QUESTION_PAPER, Paper: paper}
}

func MarkScheme(paper int) Category {
	return Category{Kind: CATEGORY_MARK_SCHEME, Paper: paper}
}

func Miscellaneous() Category {
	return Category{Kind: CATEGORY_MISC}
}

// String renders the category tag, ex. "qp_1", "ms", "misc".
func (c Category) String() string {
	prefix := "misc"
	switch c.Kind {
	case CATEGORY_QUESTION_PAPER:
		prefix = "qp"
	case CATEGORY_MARK_SCHEME:
		prefix = "ms"
	default:
		return prefix
	}
	if c.Paper > 0 {
		return fmt.Sprintf("%s_%d", prefix, c.Paper)
	}
	return prefix
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(tag string) (Category, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "misc" {
		return Miscellaneous(), nil
	}

	prefix, number, hasNumber := strings.Cut(tag, "_")
	var kind CategoryKind
	switch prefix {
	case "qp":
		kind = CATEGORY_QUESTION_PAPER
	case "ms":
		kind = CATEGORY_MARK_SCHEME
	default:
		return Category{}, fmt.Errorf("%w: unknown category '%s'", ErrInvalidRequest, tag)
	}
	if !hasNumber {
		return Category{Kind: kind}, nil
	}
	paper, err := strconv.Atoi(number)
	if err != nil || paper <= 0 {
		return Category{}, fmt.Errorf("%w: bad paper number in '%s'", ErrInvalidRequest, tag)
	}
	return Category{Kind: kind, Paper: paper}, nil
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// only the digit bound directly to the token counts, subject codes and years are ignored
var caiePaperNumber = regexp.MustCompile(`_(?:qp|ms)_(\d)`)

var (
	edexcelPaperOne = regexp.MustCompile(`(?i)paper ?1[pr]?`)
	edexcelPaperTwo = regexp.MustCompile(`(?i)paper ?2[pr]?`)
)

// Categorize classifies a document from its filename. It is a pure function
// of (filename, board).
func Categorize(filename string, board Board) Category {
	lower := strings.ToLower(filename)

	switch board {
	case BOARD_CAIE:
		paper := 0
		groups := caiePaperNumber.FindStringSubmatch(lower)
		if len(groups) == 2 {
			paper = int(groups[1][0] - '0')
		}

		if strings.Contains(lower, "_ms_") ||
			strings.Contains(lower, "mark scheme") ||
			strings.Contains(lower, "mark_scheme") {
			return MarkScheme(paper)
		}
		if strings.Contains(lower, "_qp_") ||
			strings.Contains(lower, "question paper") ||
			strings.Contains(lower, "question_paper") {
			return QuestionPaper(paper)
		}
		return Miscellaneous()
	case BOARD_EDEXCEL:
		if edexcelPaperOne.MatchString(filename) {
			return QuestionPaper(1)
		}
		if edexcelPaperTwo.MatchString(filename) {
			return QuestionPaper(2)
		}

		if strings.Contains(lower, "question") {
			return QuestionPaper(0)
		}
		if strings.Contains(lower, "mark") || strings.Contains(lower, "ms") {
			return MarkScheme(0)
		}
		return Miscellaneous()
	}
	return Miscellaneous()
}

// CategorizeAll categorizes every document concurrently, the output keeps the
// input order.
func CategorizeAll(docs []RawDocument, board Board) []CategorizedDocument {
	out := make([]CategorizedDocument, len(docs))
	if len(docs) == 0 {
		return out
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(docs) {
		workers = len(docs)
	}
	chunk := (len(docs) + workers - 1) / workers

	wg := sync.WaitGroup{}
	for start := 0; start < len(docs); start += chunk {
		end := min(start+chunk, len(docs))
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				out[i] = CategorizedDocument{
					RawDocument: docs[i],
					Category:    Categorize(docs[i].Filename, board),
				}
			}
		}(start, end)
	}
	wg.Wait()

	return out
}
