// Package persona loads agent characters from YAML files and renders the
// profile text used in prompts.
package persona

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownPersona is returned by Registry.Get for an unregistered id.
var ErrUnknownPersona = errors.New("unknown persona")

// Persona is an agent character.
type Persona struct {
	ID               string  `yaml:"id"                json:"id"`
	Name             string  `yaml:"name"              json:"name"`
	Personality      string  `yaml:"personality"       json:"personality"`
	PaintingStyle    string  `yaml:"painting_style"    json:"painting_style"`
	PoemStyle        string  `yaml:"poem_style"        json:"poem_style"`
	Tone             string  `yaml:"tone"              json:"tone"`
	ArtPreference    string  `yaml:"art_preference"    json:"art_preference"`
	WalletAddress    string  `yaml:"wallet_address"    json:"wallet_address"`
	TelegramUsername string  `yaml:"telegram_username" json:"telegram_username,omitempty"`
	Emotion          Emotion `yaml:"emotion"           json:"emotion"`
}

// Validate checks required fields and emotion ranges.
func (p *Persona) Validate() error {
	var problems []string
	if strings.TrimSpace(p.ID) == "" {
		problems = append(problems, "id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is required")
	}
	if err := p.Emotion.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid persona %q: %s", p.ID, strings.Join(problems, "; "))
	}
	return nil
}

// ProfileMessage renders the character profile injected into prompts.
func (p *Persona) ProfileMessage() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", p.Name)
	writeField(&b, "Personality", p.Personality)
	writeField(&b, "Painting style", p.PaintingStyle)
	writeField(&b, "Poem style", p.PoemStyle)
	writeField(&b, "Tone", p.Tone)
	writeField(&b, "Art preference", p.ArtPreference)
	name, value := p.Emotion.Extreme()
	fmt.Fprintf(&b, "Current mood: mostly %s (%.1f/10)\n", name, value)
	return strings.TrimRight(b.String(), "\n")
}

func writeField(b *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(b, "%s: %s\n", label, value)
	}
}

// Load reads one persona file.
func Load(path string) (*Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read persona file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a persona document. Unknown keys are rejected.
func Parse(data []byte) (*Persona, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Persona
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse persona: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Registry holds every loaded persona by id.
type Registry struct {
	byID map[string]*Persona
}

// NewRegistry builds a registry from personas, rejecting duplicate ids.
func NewRegistry(personas ...*Persona) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Persona, len(personas))}
	for _, p := range personas {
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate persona id %q", p.ID)
		}
		r.byID[p.ID] = p
	}
	return r, nil
}

// LoadDir loads every *.yaml and *.yml file in dir.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read persona directory %s: %w", dir, err)
	}

	var personas []*Persona
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
		default:
			continue
		}
		p, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		personas = append(personas, p)
	}
	if len(personas) == 0 {
		return nil, fmt.Errorf("no persona files found in %s", dir)
	}
	return NewRegistry(personas...)
}

// Get returns the persona with the given id.
func (r *Registry) Get(id string) (*Persona, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPersona, id)
	}
	return p, nil
}

// All returns every persona sorted by id.
func (r *Registry) All() []*Persona {
	out := make([]*Persona, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
