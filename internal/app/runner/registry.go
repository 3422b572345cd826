package runner

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// WrapFunc turns user source plus one test input into a runnable program.
type WrapFunc func(code, input string) string

type Language struct {
	Name            string   `json:"name"`
	Aliases         []string `json:"aliases,omitempty"`
	SandboxLanguage string   `json:"sandbox_language"`
	FileExtension   string   `json:"file_extension"`
	Wrap            WrapFunc `json:"-"`
}

// FileName is the name the sandbox sees for the wrapped source.
func (l *Language) FileName() string {
	return "main." + l.FileExtension
}

type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Language
	aliases map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]*Language),
		aliases: make(map[string]string),
	}
}

// NewDefaultRegistry returns a registry holding the built-in javascript, cpp
// and python runners.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, lang := range []Language{JavaScript(), CPP(), Python()} {
		if err := r.Register(lang); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(lang Language) error {
	name := strings.ToLower(strings.TrimSpace(lang.Name))
	if name == "" {
		return fmt.Errorf("runner: language name is required")
	}
	if lang.Wrap == nil {
		return fmt.Errorf("runner: language %q has no wrap function", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("runner: language %q already registered", name)
	}
	for _, alias := range lang.Aliases {
		key := strings.ToLower(alias)
		if owner, taken := r.aliases[key]; taken {
			return fmt.Errorf("runner: alias %q already belongs to %q", alias, owner)
		}
		if _, taken := r.byName[key]; taken {
			return fmt.Errorf("runner: alias %q collides with a language name", alias)
		}
	}

	lang.Name = name
	r.byName[name] = &lang
	for _, alias := range lang.Aliases {
		r.aliases[strings.ToLower(alias)] = name
	}
	return nil
}

// Resolve looks a language up by canonical name or alias, ignoring case.
func (r *Registry) Resolve(name string) (*Language, bool) {
	key := strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	defer r.mu.RUnlock()

	if lang, ok := r.byName[key]; ok {
		return lang, true
	}
	if canonical, ok := r.aliases[key]; ok {
		return r.byName[canonical], true
	}
	return nil, false
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Languages returns every registered language sorted by name.
func (r *Registry) Languages() []Language {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Language, 0, len(names))
	for _, name := range names {
		out = append(out, *r.byName[name])
	}
	return out
}
