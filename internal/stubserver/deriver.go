package stubserver

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
)

// Storyboard is a derived shot list.
type Storyboard struct {
	Title   string
	Cuts    []domain.Cut
	Prompts []string
}

// Deriver turns a narrative into a storyboard.
type Deriver interface {
	Derive(ctx context.Context, story, title string, minShots int, style domain.StyleKey) (Storyboard, error)
}

// StaticDeriver derives storyboards without a model: one establishing cut for
// the whole story, then minShots cuts for every sentence.
type StaticDeriver struct{}

var (
	sentenceSplit = regexp.MustCompile(`[.!?\n]+`)
	quoted        = regexp.MustCompile(`"([^"]+)"`)
	shotKinds     = []string{"wide shot", "medium shot", "close-up", "over-the-shoulder shot", "low-angle shot"}
)

func (StaticDeriver) Derive(ctx context.Context, story, title string, minShots int, style domain.StyleKey) (Storyboard, error) {
	if err := ctx.Err(); err != nil {
		return Storyboard{}, err
	}
	story = strings.TrimSpace(story)
	if story == "" {
		return Storyboard{}, domain.ErrEmptyNarrative
	}
	minShots = domain.NormalizeMinShots(minShots)

	var sentences []string
	for _, part := range sentenceSplit.Split(story, -1) {
		if s := strings.TrimSpace(part); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		sentences = []string{story}
	}

	cast := characters(story)
	board := Storyboard{Title: strings.TrimSpace(title)}
	if board.Title == "" {
		board.Title = suggestTitle(sentences[0])
	}

	board.Cuts = append(board.Cuts, domain.Cut{
		CutID:       1,
		CutName:     "Opening",
		Composition: "establishing wide shot",
		Background:  sentences[0],
		Characters:  cast,
		Dialogues:   []domain.Dialogue{},
		Actions:     []string{"the scene is introduced"},
	})
	for scene, sentence := range sentences {
		lines := dialogues(sentence, cast)
		for shot := 0; shot < minShots; shot++ {
			board.Cuts = append(board.Cuts, domain.Cut{
				CutID:       len(board.Cuts) + 1,
				CutName:     fmt.Sprintf("Scene %d, shot %d", scene+1, shot+1),
				Composition: shotKinds[shot%len(shotKinds)],
				Background:  sentence,
				Characters:  cast,
				Dialogues:   lines,
				Actions:     []string{sentence},
			})
		}
	}
	for _, cut := range board.Cuts {
		board.Prompts = append(board.Prompts, BuildPrompt(cut, style))
	}
	return board, nil
}

// BuildPrompt renders the image prompt for one cut.
func BuildPrompt(cut domain.Cut, style domain.StyleKey) string {
	chars := "characters"
	if len(cut.Characters) > 0 {
		chars = strings.Join(cut.Characters, ", ")
	}
	var lines []string
	for i, d := range cut.Dialogues {
		if i == 3 {
			break
		}
		lines = append(lines, d.Speaker+": "+d.Text)
	}
	return fmt.Sprintf("%s, %s. characters: %s. background: %s. dialogues: %s. %s",
		cut.CutName, cut.Composition, chars, cut.Background, strings.Join(lines, "; "), style.Suffix())
}

func suggestTitle(sentence string) string {
	words := strings.Fields(sentence)
	if len(words) > 5 {
		words = words[:5]
	}
	// Casers are stateful; one per call.
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// characters collects capitalized words that do not open a sentence.
func characters(story string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, sentence := range sentenceSplit.Split(story, -1) {
		words := strings.Fields(sentence)
		for i, w := range words {
			if i == 0 {
				continue
			}
			w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) })
			if w == "" || !unicode.IsUpper([]rune(w)[0]) || seen[w] {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func dialogues(sentence string, cast []string) []domain.Dialogue {
	out := []domain.Dialogue{}
	speaker := "Narrator"
	if len(cast) > 0 {
		speaker = cast[0]
	}
	for _, m := range quoted.FindAllStringSubmatch(sentence, -1) {
		out = append(out, domain.Dialogue{Speaker: speaker, Text: strings.TrimSpace(m[1])})
	}
	return out
}
