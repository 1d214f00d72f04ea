package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quiz-playback-service/internal/schema"
)

// NewValidateCmd checks a quiz document file against the schema and prints
// every violation with its field path, so authors can fix a document in
// one pass.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <document.json>",
		Short: "Validate a quiz document file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			doc, err := schema.Parse(raw)
			if err != nil {
				var vErr *schema.ValidationError
				if errors.As(err, &vErr) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d issue(s)\n", args[0], len(vErr.Issues))
					for _, issue := range vErr.Issues {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", issue)
					}
				}
				return fmt.Errorf("document is invalid")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d scenes, %.0fs total)\n", args[0], len(doc.Scenes), doc.TotalDurationInSeconds)
			return nil
		},
	}
}
