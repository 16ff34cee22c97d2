package home

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultDirName is the default name for the quill home directory.
	DefaultDirName = ".quill"

	// SessionsDirName is the subdirectory holding one directory per run.
	SessionsDirName = "sessions"

	// PromptsDirName is the default prompt override directory.
	PromptsDirName = "prompts"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// CallsDBName is the SQLite file recording LLM calls.
	CallsDBName = "llmcalls.db"

	// SessionTimeFormat names sessions by their start time.
	SessionTimeFormat = "2006-01-02_15-04-05"
)

// Session artifact file names.
const (
	TranscriptFile = "transcript.txt"
	ChaptersFile   = "chapters.json"
	StoryFile      = "story.txt"
	EPUBFile       = "story.epub"
)

// Dir represents the quill home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.quill).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// CallsDBPath returns the path to the LLM call database.
func (d *Dir) CallsDBPath() string {
	return filepath.Join(d.path, CallsDBName)
}

// PromptsDir returns the default prompt override directory.
func (d *Dir) PromptsDir() string {
	return filepath.Join(d.path, PromptsDirName)
}

// SessionsDir returns the directory holding all sessions.
func (d *Dir) SessionsDir() string {
	return filepath.Join(d.path, SessionsDirName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Creating sessions also creates the parent
	if err := os.MkdirAll(d.SessionsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// SessionID returns the session identifier for a run started at t.
func SessionID(t time.Time) string {
	return t.Format(SessionTimeFormat)
}

// SessionDir returns the artifact directory for a session.
func (d *Dir) SessionDir(sessionID string) string {
	return filepath.Join(d.SessionsDir(), sessionID)
}

// SessionFile returns the path of an artifact within a session.
func (d *Dir) SessionFile(sessionID, name string) string {
	return filepath.Join(d.SessionDir(sessionID), name)
}

// NewSession creates a fresh session directory named after now. A numeric
// suffix is added when two runs start within the same second.
func (d *Dir) NewSession(now time.Time) (string, error) {
	if err := d.EnsureExists(); err != nil {
		return "", err
	}
	base := SessionID(now)
	id := base
	for i := 2; ; i++ {
		err := os.Mkdir(d.SessionDir(id), 0o755)
		if err == nil {
			return id, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("failed to create session directory: %w", err)
		}
		id = fmt.Sprintf("%s_%d", base, i)
	}
}

// Sessions lists existing session IDs, oldest first.
func (d *Dir) Sessions() ([]string, error) {
	entries, err := os.ReadDir(d.SessionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
