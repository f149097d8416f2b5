package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Prompter asks the user to confirm destructive commands.
type Prompter struct {
	writer io.Writer
	reader *LineReader
}

// NewPrompter creates a prompter; nil arguments default to stdin/stdout.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{reader: NewLineReader(reader), writer: writer}
}

// Confirm asks a yes/no question until it gets a valid answer. An empty
// answer picks defaultYes. French and English answers are accepted.
func (p *Prompter) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	hint := "o/N"
	if defaultYes {
		hint = "O/n"
	}

	for {
		if _, err := fmt.Fprintf(p.writer, "%s ", FormatPrompt(fmt.Sprintf("%s [%s]", question, hint))); err != nil {
			return false, fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			return false, err
		}

		switch strings.ToLower(input) {
		case "":
			return defaultYes, nil
		case "o", "oui", "y", "yes":
			return true, nil
		case "n", "non", "no":
			return false, nil
		}

		if _, err := fmt.Fprintln(p.writer, FormatError("Réponse invalide, tapez o ou n.")); err != nil {
			slog.Warn("failed to write error message", "error", err)
		}
	}
}
