package domain

import (
	"fmt"
	"strings"
)

// StyleKey selects the visual style applied when prompts are derived and images generated.
type StyleKey string

const (
	StyleAnime      StyleKey = "anime"
	StyleCinematic  StyleKey = "cinematic"
	StyleWatercolor StyleKey = "watercolor"
	StyleNoir       StyleKey = "noir"
	StyleStorybook  StyleKey = "storybook"

	DefaultStyle = StyleAnime
)

var styleSuffixes = map[StyleKey]string{
	StyleAnime:      "cinematic anime illustration, detailed lineart, soft shading, dramatic lighting",
	StyleCinematic:  "cinematic film still, anamorphic lens, volumetric light, shallow depth of field",
	StyleWatercolor: "loose watercolor painting, soft bleeding edges, textured paper, muted palette",
	StyleNoir:       "black and white film noir, hard shadows, high contrast, rain-soaked streets",
	StyleStorybook:  "children's storybook illustration, gouache, warm colors, gentle outlines",
}

// StyleKeys lists the supported styles in display order.
func StyleKeys() []StyleKey {
	return []StyleKey{StyleAnime, StyleCinematic, StyleWatercolor, StyleNoir, StyleStorybook}
}

// ParseStyleKey validates user input against the supported style set.
func ParseStyleKey(s string) (StyleKey, error) {
	key := StyleKey(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := styleSuffixes[key]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, s)
	}
	return key, nil
}

// NormalizeStyleKey maps stored values onto the supported set, falling back to DefaultStyle.
func NormalizeStyleKey(s string) StyleKey {
	key, err := ParseStyleKey(s)
	if err != nil {
		return DefaultStyle
	}
	return key
}

// Suffix returns the prompt suffix describing the style.
func (k StyleKey) Suffix() string {
	if v, ok := styleSuffixes[k]; ok {
		return v
	}
	return styleSuffixes[DefaultStyle]
}
