package recipe

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Mode identifies which search path produced a model response. The two paths
// ask the model for differently shaped JSON.
type Mode int

const (
	// ModeIngredients expects a bare JSON array of recipes.
	ModeIngredients Mode = iota
	// ModeImages expects a JSON object holding the array under "recipes".
	ModeImages
)

func (m Mode) String() string {
	switch m {
	case ModeImages:
		return "images"
	default:
		return "ingredients"
	}
}

// Normalizer turns raw model output into recipe records. It never fails:
// unusable input yields an empty slice.
type Normalizer interface {
	Normalize(raw string, mode Mode, filter CourseType) []Recipe
}

// NormalizerFunc adapts a plain function to the Normalizer interface.
type NormalizerFunc func(raw string, mode Mode, filter CourseType) []Recipe

// Normalize calls f(raw, mode, filter).
func (f NormalizerFunc) Normalize(raw string, mode Mode, filter CourseType) []Recipe {
	return f(raw, mode, filter)
}

// DefaultNormalizer decodes structured JSON and falls back to ParseText.
var DefaultNormalizer Normalizer = NormalizerFunc(Normalize)

var (
	errNullRecipe   = errors.New("null recipe in response")
	errMissingList  = errors.New("response has no recipe list")
	errTrailingData = errors.New("unexpected data after JSON value")
)

// Normalize converts a raw model response into recipes. Strict JSON decoding
// is attempted first; if it fails the cleaned text goes through ParseText.
// Field values of any JSON type are kept as text.
func Normalize(raw string, mode Mode, filter CourseType) []Recipe {
	cleaned := StripFences(raw)

	recipes, err := decodeRecipes(cleaned, mode)
	if err != nil {
		return ParseText(cleaned)
	}

	for i := range recipes {
		if recipes[i].CourseType == "" && filter.Constrained() {
			recipes[i].CourseType = string(filter)
		}
	}
	return recipes
}

// StripFences removes every Markdown code fence marker and every literal
// "json" token. Removal repeats until the text is stable, so applying it to
// its own output is a no-op.
func StripFences(s string) string {
	for {
		next := strings.ReplaceAll(s, "```", "")
		next = strings.ReplaceAll(next, "json", "")
		if next == s {
			return s
		}
		s = next
	}
}

func decodeRecipes(s string, mode Mode) ([]Recipe, error) {
	var list []*wireRecipe
	switch mode {
	case ModeImages:
		var wrapper struct {
			Recipes []*wireRecipe `json:"recipes"`
		}
		if err := decodeStrict(s, &wrapper); err != nil {
			return nil, err
		}
		list = wrapper.Recipes
	default:
		if err := decodeStrict(s, &list); err != nil {
			return nil, err
		}
	}
	if list == nil {
		return nil, errMissingList
	}

	recipes := make([]Recipe, 0, len(list))
	for _, r := range list {
		if r == nil {
			return nil, errNullRecipe
		}
		recipes = append(recipes, r.recipe())
	}
	return recipes, nil
}

// decodeStrict decodes exactly one JSON value and rejects anything after it.
func decodeStrict(s string, v any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errTrailingData
	}
	return nil
}
