// Package actions loads and validates the user-editable AI action
// definitions. Actions live in a JSON file next to the database; the
// registry parses them once at load and serves read-only copies, with
// a file watcher reloading on edit.
package actions

import (
	"encoding/json/v2"
	"fmt"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/noveldeck/noveldeck-server/internal/domain"
	"github.com/noveldeck/noveldeck-server/internal/errors"
	"github.com/noveldeck/noveldeck-server/internal/logger"
)

// builtins ship with the application and are always available, even
// when the actions file is missing or broken. A file entry with the
// same key overrides the builtin.
var builtins = []domain.Action{
	{
		Key:        string(domain.ModeTranslate),
		Name:       "Translate",
		Prompt:     "Translate the following novel chapter into natural, fluent English. Preserve paragraph breaks, dialogue formatting, and the author's tone. Return only the translated chapter.\n\n{{content}}",
		Preprocess: domain.PreprocessNone,
		Provider:   domain.ProviderGemini,
	},
	{
		Key:        string(domain.ModeSummary),
		Name:       "Summarize",
		Prompt:     "Summarize the following novel chapter in a few short paragraphs. Cover the key plot points and character moments without commentary.\n\n{{content}}",
		Preprocess: domain.PreprocessNone,
		Provider:   domain.ProviderGemini,
	},
}

// Registry holds the current action set. Lookups are safe for
// concurrent use with reloads.
type Registry struct {
	mu       sync.RWMutex
	actions  map[string]domain.Action
	path     string
	log      *logger.Logger
	validate *validator.Validate
}

// NewRegistry creates a registry backed by the actions file at path and
// performs the initial load. A missing file is not an error; the
// builtins alone are served until one appears.
func NewRegistry(path string, log *logger.Logger) (*Registry, error) {
	r := &Registry{
		path:     path,
		log:      log,
		validate: validator.New(),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the actions file and swaps the action set. On a
// parse or validation error the previous set is kept and the error
// returned, so a bad edit never takes down working actions.
func (r *Registry) Reload() error {
	actions := make(map[string]domain.Action, len(builtins))
	for _, a := range builtins {
		actions[a.Key] = a
	}

	loaded, err := r.loadFile()
	if err != nil {
		return err
	}
	for _, a := range loaded {
		actions[a.Key] = a
	}

	r.mu.Lock()
	r.actions = actions
	r.mu.Unlock()

	r.log.Debug("actions loaded", "count", len(actions), "path", r.path)
	return nil
}

func (r *Registry) loadFile() ([]domain.Action, error) {
	if r.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "reading actions file")
	}

	var loaded []domain.Action
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, errors.Validation(fmt.Sprintf("actions file is not valid JSON: %v", err))
	}

	seen := make(map[string]bool, len(loaded))
	for i := range loaded {
		a := &loaded[i]
		if a.Preprocess == "" {
			a.Preprocess = domain.PreprocessNone
		}
		if a.Provider == "" {
			a.Provider = domain.ProviderGemini
		}
		if err := r.validate.Struct(a); err != nil {
			return nil, errors.Validation(fmt.Sprintf("action %q: %v", a.Key, err))
		}
		if a.Key == string(domain.ModeRaw) {
			return nil, errors.Validation(`action key "raw" is reserved`)
		}
		if seen[a.Key] {
			return nil, errors.Validation(fmt.Sprintf("duplicate action key %q", a.Key))
		}
		seen[a.Key] = true
	}
	return loaded, nil
}

// Get returns the action registered under key.
func (r *Registry) Get(key string) (domain.Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.actions[key]
	if !ok {
		return domain.Action{}, errors.NotFoundf("unknown action %q", key)
	}
	return a, nil
}

// List returns every registered action, builtins included.
func (r *Registry) List() []domain.Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Action, 0, len(r.actions))
	for _, a := range r.actions {
		out = append(out, a)
	}
	return out
}

// Path returns the actions file location, for the watcher.
func (r *Registry) Path() string {
	return r.path
}
