package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/OpenGG/hostspilot/internal/config"
	"github.com/OpenGG/hostspilot/internal/hosts/domain"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	}
	return domain.Errorf(domain.ErrValidation, "unknown output format %q (want text, json or yaml)", format)
}

// result reports a mutation in structured output.
type result struct {
	Action  string `json:"action" yaml:"action"`
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`
	From    string `json:"from,omitempty" yaml:"from,omitempty"`
	Backup  string `json:"backup,omitempty" yaml:"backup,omitempty"`
	Bytes   int    `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	Count   *int   `json:"count,omitempty" yaml:"count,omitempty"`
}

// document is file content in structured output.
type document struct {
	Name    string `json:"name" yaml:"name"`
	Content string `json:"content" yaml:"content"`
}

type configView struct {
	config.Config `yaml:",inline"`
	DataRoot      string `json:"data_root" yaml:"data_root"`
	ProfilesDir   string `json:"profiles_dir" yaml:"profiles_dir"`
	BackupsDir    string `json:"backups_dir" yaml:"backups_dir"`
	ConfigFile    string `json:"config_file" yaml:"config_file"`
	LiveFile      string `json:"live_file" yaml:"live_file"`
}

// render writes v in the selected structured format, or calls text for the
// human format.
func (a *app) render(v any, text func(w io.Writer)) error {
	return writeFormatted(a.stdout, a.output, v, text)
}

func writeFormatted(w io.Writer, format string, v any, text func(w io.Writer)) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case formatText, "":
		text(w)
		return nil
	}
	return validateFormat(format)
}

type errorView struct {
	Error string `json:"error" yaml:"error"`
	Kind  string `json:"kind" yaml:"kind"`
}

// ReportError prints err to w. Structured formats get an object with the
// message and its kind; text gets "Error: <message>".
func ReportError(w io.Writer, format string, err error) {
	if err == nil {
		return
	}
	view := errorView{Error: err.Error(), Kind: domain.KindOf(err)}
	if format == formatJSON || format == formatYAML {
		if werr := writeFormatted(w, format, view, nil); werr == nil {
			return
		}
	}
	fmt.Fprintf(w, "Error: %s\n", err)
}
