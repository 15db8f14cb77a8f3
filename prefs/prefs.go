// Package prefs provides user preferences which gate emote expansion.
package prefs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v3"
)

// ErrUnavailable is returned when preferences cannot be obtained.
var ErrUnavailable = errors.New("preferences unavailable")

// Preferences is a read-only snapshot of user configuration. Missing values
// are disabled or empty.
type Preferences struct {
	BlacklistedOrigins []string `yaml:"blacklisted_origins"`
	ShowAltText        bool     `yaml:"show_alt_text"`
	EnableExtraStyling bool     `yaml:"enable_extra_styling"`
	EnableAdultContent bool     `yaml:"enable_adult_content"`
}

// Blacklisted reports whether expansion is disabled for origin. Origins are
// compared case insensitively, blank entries and unknown (empty) origin never
// match.
func (p Preferences) Blacklisted(origin string) bool {
	origin = strings.TrimSpace(origin)
	if len(origin) == 0 {
		return false
	}
	return slices.ContainsFunc(p.BlacklistedOrigins, func(o string) bool {
		return strings.EqualFold(strings.TrimSpace(o), origin)
	})
}

func (p Preferences) clone() Preferences {
	p.BlacklistedOrigins = slices.Clone(p.BlacklistedOrigins)
	return p
}

// Provider returns current preferences.
type Provider interface {
	Preferences(ctx context.Context) (Preferences, error)
}

// Static always returns the same preferences.
type Static Preferences

func (s Static) Preferences(ctx context.Context) (Preferences, error) {
	if err := ctx.Err(); err != nil {
		return Preferences{}, err
	}
	return Preferences(s).clone(), nil
}

// File reads preferences from YAML file on every call, so changes become
// visible on the next pass. Unknown keys are ignored.
type File struct {
	Path string
}

func (f File) Preferences(ctx context.Context) (Preferences, error) {
	if err := ctx.Err(); err != nil {
		return Preferences{}, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Preferences{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	var p Preferences
	if len(bytes.TrimSpace(data)) == 0 {
		return p, nil
	}
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return Preferences{}, fmt.Errorf("%w: unable to decode %s: %w", ErrUnavailable, f.Path, err)
	}
	return p, nil
}

// Gate performs at most one preferences read. Create new gate for every pass.
type Gate struct {
	read func() (Preferences, error)
}

// NewGate returns gate reading p with ctx on first use.
func NewGate(ctx context.Context, p Provider) *Gate {
	return &Gate{read: sync.OnceValues(func() (Preferences, error) {
		return p.Preferences(ctx)
	})}
}

// Current returns preferences snapshot, all callers observe the same read.
func (g *Gate) Current() (Preferences, error) {
	p, err := g.read()
	if err != nil {
		return Preferences{}, err
	}
	return p.clone(), nil
}
