package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
)

// Script is the YAML document accepted by "studio run --script".
//
//	title: Chase
//	story: |
//	  A hero flees.
//	min_shots: 2
//	style: noir
//	generate: true
//	regenerate:
//	  - index: 1
//	    prompt: a hero leaps over a wall
type Script struct {
	Title      *string          `yaml:"title"`
	Story      *string          `yaml:"story"`
	MinShots   *int             `yaml:"min_shots"`
	Style      string           `yaml:"style"`
	Derive     *bool            `yaml:"derive"`
	Generate   bool             `yaml:"generate"`
	Regenerate []RegenerateStep `yaml:"regenerate"`
}

type RegenerateStep struct {
	Index  int    `yaml:"index"`
	Prompt string `yaml:"prompt"`
}

func loadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return parseScript(data)
}

func parseScript(data []byte) (*Script, error) {
	var sc Script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	if sc.Style != "" {
		if _, err := domain.ParseStyleKey(sc.Style); err != nil {
			return nil, err
		}
	}
	for _, step := range sc.Regenerate {
		if step.Index < 1 {
			return nil, fmt.Errorf("parsing script: regenerate index %d must be 1 or greater", step.Index)
		}
	}
	return &sc, nil
}

// ShouldDerive reports whether the storyboard is derived. It defaults to true
// when the script sets a story.
func (sc *Script) ShouldDerive() bool {
	if sc.Derive != nil {
		return *sc.Derive
	}
	return sc.Story != nil
}
