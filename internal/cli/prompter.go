package cli

// Prompter asks the user for input. Commands only talk to the terminal through
// it so they can be driven by tests.
type Prompter interface {
	// Select offers items with defaultValue preselected.
	Select(label string, items []string, defaultValue string) (int, string, error)
	// Prompt reads one line of text, trimmed. When validate is not nil the
	// user is asked again until it accepts the trimmed input.
	Prompt(label string, validate func(string) error) (string, error)
	Confirm(label string, defaultYes bool) (bool, error)
}
