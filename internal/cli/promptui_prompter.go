package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
)

// menuSize is how many profiles or backups a selection menu shows at once.
const menuSize = 10

var (
	selectTemplates = &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "▸ {{ . | cyan }}",
		Inactive: "  {{ . }}",
		Selected: "{{ . | faint }}",
	}
	promptTemplates = &promptui.PromptTemplates{
		Prompt:  "{{ . }}: ",
		Valid:   "{{ . | green }}: ",
		Invalid: "{{ . | red }}: ",
		Success: "{{ . | faint }}: ",
	}
)

// PromptUI is the terminal Prompter.
type PromptUI struct {
	stdin  io.ReadCloser
	stdout io.WriteCloser
}

// NewPromptUI prompts on the process terminal.
func NewPromptUI() *PromptUI {
	return NewPromptUIWithIO(nil, nil)
}

// NewPromptUIWithIO prompts on the given streams; nil falls back to the
// process stdin or stdout.
func NewPromptUIWithIO(stdin io.Reader, stdout io.Writer) *PromptUI {
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	return &PromptUI{stdin: readCloser{stdin}, stdout: writeCloser{stdout}}
}

// Select opens a searchable menu with the cursor on defaultValue, so pressing
// enter keeps the current profile.
func (p *PromptUI) Select(label string, items []string, defaultValue string) (int, string, error) {
	cursor := 0
	for i, item := range items {
		if item == defaultValue {
			cursor = i
			break
		}
	}

	menu := promptui.Select{
		Label:     label,
		Items:     items,
		Size:      menuSize,
		CursorPos: cursor,
		HideHelp:  true,
		Templates: selectTemplates,
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(items[index]), strings.ToLower(strings.TrimSpace(input)))
		},
		StartInSearchMode: len(items) > menuSize,
		Stdin:             p.stdin,
		Stdout:            p.stdout,
	}
	idx, value, err := menu.Run()
	if err != nil {
		return idx, value, cancelled(err)
	}
	return idx, value, nil
}

// Prompt shows validate's verdict inline while the user types, so a profile
// name is rejected before anything touches the disk.
func (p *PromptUI) Prompt(label string, validate func(string) error) (string, error) {
	line := promptui.Prompt{
		Label:     label,
		Templates: promptTemplates,
		Stdin:     p.stdin,
		Stdout:    p.stdout,
	}
	if validate != nil {
		line.Validate = func(input string) error {
			return validate(strings.TrimSpace(input))
		}
	}
	value, err := line.Run()
	if err != nil {
		return "", cancelled(err)
	}
	return strings.TrimSpace(value), nil
}

// Confirm treats an explicit "n" as a plain no; only ^C and ^D cancel.
func (p *PromptUI) Confirm(label string, defaultYes bool) (bool, error) {
	def := "N"
	if defaultYes {
		def = "Y"
	}
	question := promptui.Prompt{
		Label:     strings.TrimSuffix(label, " (y/N)"),
		IsConfirm: true,
		Default:   def,
		Stdin:     p.stdin,
		Stdout:    p.stdout,
	}
	answer, err := question.Run()
	switch {
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	case err != nil:
		return false, cancelled(err)
	}
	return strings.EqualFold(answer, "y") || (answer == "" && defaultYes), nil
}

// cancelled maps promptui's ^C, ^D and EOF errors onto ErrPromptCancelled,
// which the process turns into exit code 130.
func cancelled(err error) error {
	return fmt.Errorf("%w: %v", ErrPromptCancelled, err)
}

// promptui wants closers; closing a prompt must not close the process streams.
type readCloser struct{ io.Reader }

func (readCloser) Close() error { return nil }

type writeCloser struct{ io.Writer }

func (writeCloser) Close() error { return nil }
