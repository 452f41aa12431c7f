package recipe

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// wireRecipe is the shape decoded from model output. Models are loose about
// types ("prepTime": 10, ingredients as objects), so every field accepts any
// JSON value and is flattened to text.
type wireRecipe struct {
	Title           looseString `json:"title"`
	Ingredients     looseList   `json:"ingredients"`
	Steps           looseList   `json:"steps"`
	ImageURL        looseString `json:"imageUrl"`
	LegacyImageURL  looseString `json:"imageURL"`
	PrepTime        looseString `json:"prepTime"`
	CookTime        looseString `json:"cookTime"`
	CourseType      looseString `json:"courseType"`
	MarkdownContent looseString `json:"markdownContent"`
}

func (w *wireRecipe) recipe() Recipe {
	r := Recipe{
		Title:           string(w.Title),
		Ingredients:     []string(w.Ingredients),
		Steps:           []string(w.Steps),
		ImageURL:        string(w.ImageURL),
		PrepTime:        string(w.PrepTime),
		CookTime:        string(w.CookTime),
		CourseType:      strings.TrimSpace(string(w.CourseType)),
		MarkdownContent: string(w.MarkdownContent),
	}
	if r.ImageURL == "" {
		r.ImageURL = string(w.LegacyImageURL)
	}
	r.ensureSlices()
	return r
}

// looseString holds any JSON value as text. Strings are kept verbatim;
// numbers and booleans keep their literal; arrays and objects are flattened.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	text, err := flatten(data)
	if err != nil {
		return err
	}
	*s = looseString(text)
	return nil
}

// looseList holds a JSON list as text lines, one per element. A lone scalar
// becomes a single line.
type looseList []string

func (l *looseList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}

	if len(trimmed) == 0 || trimmed[0] != '[' {
		text, err := flatten(trimmed)
		if err != nil {
			return err
		}
		if text == "" {
			*l = []string{}
		} else {
			*l = []string{text}
		}
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return err
	}
	out := make([]string, 0, len(elems))
	for _, elem := range elems {
		var str string
		if err := json.Unmarshal(elem, &str); err == nil {
			out = append(out, str)
			continue
		}
		text, err := flatten(elem)
		if err != nil {
			return err
		}
		if text != "" {
			out = append(out, text)
		}
	}
	*l = out
	return nil
}

// flatten joins every scalar inside a JSON value with single spaces, in
// document order. Object keys are dropped.
func flatten(data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var parts []string
	if err := walk(dec, &parts); err != nil {
		return "", err
	}
	return strings.Join(parts, " "), nil
}

func walk(dec *json.Decoder, parts *[]string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case json.Delim:
		for dec.More() {
			if v == '{' {
				if _, err := dec.Token(); err != nil {
					return err
				}
			}
			if err := walk(dec, parts); err != nil {
				return err
			}
		}
		_, err := dec.Token()
		return err
	case string:
		if s := strings.TrimSpace(v); s != "" {
			*parts = append(*parts, s)
		}
	case json.Number:
		*parts = append(*parts, v.String())
	case bool:
		*parts = append(*parts, strconv.FormatBool(v))
	}
	return nil
}
