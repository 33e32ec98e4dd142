package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"edu-quiz-engine/internal/config"
	"edu-quiz-engine/internal/logging"
)

// NewQuizCmd groups one-shot quiz reads against the backend.
func NewQuizCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Read quizzes from the backend",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <quiz-id>",
		Short: "Print a quiz with its questions and options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quizID, err := parseID(args[0])
			if err != nil {
				return err
			}
			eng, err := engineFor(cmd, *configPath)
			if err != nil {
				return err
			}
			defer eng.Close()

			quiz, err := eng.service.LoadQuiz(cmd.Context(), quizID)
			if err != nil {
				return err
			}
			return printJSON(cmd, quiz)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "story <story-id>",
		Short: "List the quizzes of a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storyID, err := parseID(args[0])
			if err != nil {
				return err
			}
			eng, err := engineFor(cmd, *configPath)
			if err != nil {
				return err
			}
			defer eng.Close()

			page, err := eng.service.QuizzesForStory(cmd.Context(), storyID)
			if err != nil {
				return err
			}
			return printJSON(cmd, page)
		},
	})
	return cmd
}

func engineFor(cmd *cobra.Command, configPath string) (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return newEngine(cmd.Context(), cfg, logging.New(cfg))
}

func parseID(raw string) (int64, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return v, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
