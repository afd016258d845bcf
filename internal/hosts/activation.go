package hosts

import (
	"github.com/OpenGG/hostspilot/internal/hosts/domain"
	"github.com/OpenGG/hostspilot/internal/hosts/metadata"
)

// State is a stage of the activation pipeline.
type State int

const (
	Idle State = iota
	Capturing
	Reading
	Writing
	MetadataUpdating
	Flushing
	Done
)

var stateNames = [...]string{
	Idle:             "idle",
	Capturing:        "capturing",
	Reading:          "reading",
	Writing:          "writing",
	MetadataUpdating: "metadata_updating",
	Flushing:         "flushing",
	Done:             "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Activation is the outcome of Activate.
type Activation struct {
	Profile string `json:"profile" yaml:"profile"`
	// BackupID is the snapshot taken before the live file was written.
	BackupID string `json:"backup_id,omitempty" yaml:"backup_id,omitempty"`
	// State is the last stage entered; Done when every step ran.
	State State `json:"state" yaml:"state"`
	// FlushErr is set when everything but the DNS flush succeeded.
	FlushErr error `json:"-" yaml:"-"`
}

type step struct {
	state State
	run   func() error
}

// Activate makes profile name the live hosts file:
//
//  1. snapshot the live file
//  2. read the profile
//  3. write it over the live file
//  4. point metadata at name
//  5. flush the DNS cache
//
// A step only runs when the one before it succeeded, and nothing is rolled
// back. A failure in steps 1 to 4 returns its error with the Activation
// stopped at that state, so a denied write leaves a fresh snapshot and an
// unchanged active pointer. A flush failure returns a Done Activation and an
// error matching domain.ErrFlushFailed.
func (m *Manager) Activate(name string) (Activation, error) {
	act := Activation{Profile: name, State: Idle}

	ok, err := m.profiles.Exists(name)
	if err != nil {
		return act, err
	}
	if !ok {
		return act, domain.Errorf(domain.ErrNotFound, "profile %q does not exist", name)
	}

	var content string
	steps := []step{
		{Capturing, func() error {
			id, err := m.backups.Capture()
			act.BackupID = id
			return err
		}},
		{Reading, func() error {
			c, err := m.profiles.Read(name)
			content = c
			return err
		}},
		{Writing, func() error {
			return m.live.Write([]byte(content))
		}},
		{MetadataUpdating, func() error {
			return m.meta.Update(func(r *metadata.Record) error {
				if !r.Contains(name) {
					return domain.Errorf(domain.ErrNotFound, "profile %q does not exist", name)
				}
				r.Active = name
				return nil
			})
		}},
	}

	for _, s := range steps {
		act.State = s.state
		m.logger.Debug("activation step", "profile", name, "state", s.state.String())
		if err := s.run(); err != nil {
			m.logger.Error("activation failed",
				"profile", name,
				"state", s.state.String(),
				"backup", act.BackupID,
				"error", err)
			return act, err
		}
	}

	act.State = Flushing
	flushErr := m.flusher.Flush()
	act.State = Done
	m.logger.Info("profile activated", "profile", name, "backup", act.BackupID, "path", m.live.Path())

	if flushErr != nil {
		act.FlushErr = flushErr
		m.logger.Warn("dns flush failed after activation", "profile", name, "error", flushErr)
		return act, domain.Wrap(domain.ErrFlushFailed, flushErr,
			"profile %q activated but dns cache flush failed", name)
	}
	return act, nil
}
