package commands

import (
	"errors"
	"fmt"
	"os"

	"pastpapers-backend/internal/discovery"
	"pastpapers-backend/internal/papers"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	downloadSel.register(downloadCmd, true)

	mergeSel.register(mergeCmd, true)
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "Name of the merged file inside the download root.")

	syncSel.register(syncCmd, false)
	syncCmd.Flags().StringVar(&syncSubject, "subject", "", "Only sync the subject best matching this name.")

	rootCmd.AddCommand(downloadCmd, mergeCmd, syncCmd)
}

// failures splits a joined error back into its parts.
func failures(err error) []error {
	if err == nil {
		return nil
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}

// downloadSummary counts attempts as successes plus failures, repeated
// documents are fetched once and never reach either.
func downloadSummary(succeeded int, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%d of %d downloads succeeded", succeeded, succeeded+len(failures(err)))
}

func printFailures(err error) {
	for _, e := range failures(err) {
		fmt.Fprintln(os.Stderr, "failed:", e)
	}
}

var downloadSel selection

var downloadCmd = &cobra.Command{
	Use:   "download (--subject <name> --level <level> | --subject-url <url>) [--type <type>]",
	Short: "Downloads the documents of a subject into the download root.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, docs, err := downloadSel.documents(cmd)
		if err != nil {
			return err
		}

		artifacts, err := openStack(cmd).Orchestrator.DownloadBatch(cmd.Context(), rawDocuments(docs))
		t := newTable()
		t.AppendHeader(table.Row{"Path"})
		for _, a := range artifacts {
			t.AppendRow(table.Row{a.Path})
		}
		t.Render()

		if err != nil {
			printFailures(err)
		}
		return downloadSummary(len(artifacts), err)
	},
}

var (
	mergeSel    selection
	mergeOutput string
)

var mergeCmd = &cobra.Command{
	Use:   "merge (--subject <name> --level <level> | --subject-url <url>) --type <type> [-o <output.pdf>]",
	Short: "Downloads the selected documents and merges them into one pdf.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, docs, err := mergeSel.documents(cmd)
		if err != nil {
			return err
		}
		output := mergeOutput
		if output == "" {
			output = fmt.Sprintf("merged_%s.pdf", mergeSel.category)
			if mergeSel.category == "" {
				output = "merged.pdf"
			}
		}

		merged, err := openStack(cmd).Orchestrator.MergeDocuments(cmd.Context(), rawDocuments(docs), output)
		if err != nil {
			printFailures(err)
			return fmt.Errorf("merge failed")
		}
		fmt.Printf("Merged %d documents (%d pages) into %s\n", len(docs), merged.Pages, merged.Path)
		return nil
	},
}

var (
	syncSel     selection
	syncSubject string
)

var syncCmd = &cobra.Command{
	Use:   "sync --level <level> [--subject <name>]",
	Short: "Downloads every document of a level into <board>/<level>/<subject>/<type>/<session>/.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, board, err := syncSel.parse()
		if err != nil {
			return err
		}
		level, err := syncSel.parseLevel(board)
		if err != nil {
			return err
		}

		orchestrator := openStack(cmd).Orchestrator
		subjects, err := orchestrator.ListSubjects(cmd.Context(), source, board, level)
		if err != nil {
			return err
		}
		if syncSubject != "" {
			subject, err := MatchSubject(subjects, syncSubject)
			if err != nil {
				return err
			}
			subjects = []papers.Subject{subject}
		}
		if len(subjects) == 0 {
			return fmt.Errorf("no subjects found")
		}

		t := newTable()
		t.AppendHeader(table.Row{"Subject", "Directory", "Documents", "Downloaded", "Failed"})
		failed := 0
		for _, subject := range subjects {
			result, err := orchestrator.SyncSubject(cmd.Context(), source, board, level, subject)
			if err != nil {
				return err
			}
			for _, f := range result.Failures {
				printFailures(f)
			}
			failed += len(result.Failures)
			t.AppendRow(table.Row{
				result.Subject,
				discovery.SubjectDir(subject.Name),
				result.Total,
				result.Successful,
				len(result.Failures),
			})
		}
		t.Render()

		if failed > 0 {
			return fmt.Errorf("%d documents could not be downloaded", failed)
		}
		return nil
	},
}
