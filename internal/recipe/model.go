package recipe

import (
	"encoding/json"
	"strings"
)

// Recipe is the canonical shape every recipe suggestion is normalized into
// before it is displayed or bookmarked.
type Recipe struct {
	ID              string   `json:"id,omitempty" db:"id" firestore:"-"`
	Title           string   `json:"title" db:"title" firestore:"title"`
	Ingredients     []string `json:"ingredients" firestore:"ingredients"`
	Steps           []string `json:"steps" firestore:"steps"`
	ImageURL        string   `json:"imageUrl,omitempty" db:"image_url" firestore:"imageURL"`
	PrepTime        string   `json:"prepTime,omitempty" db:"prep_time" firestore:"prepTime"`
	CookTime        string   `json:"cookTime,omitempty" db:"cook_time" firestore:"cookTime"`
	CourseType      string   `json:"courseType,omitempty" db:"course_type" firestore:"courseType"`
	MarkdownContent string   `json:"markdownContent,omitempty" db:"markdown_content" firestore:"markdownContent"`
}

// UnmarshalJSON implements the json.Unmarshaler interface for Recipe.
// The model is prompted for "imageURL" while clients send "imageUrl", so both are accepted.
func (r *Recipe) UnmarshalJSON(data []byte) error {
	type Alias Recipe // Create an alias to avoid infinite recursion
	aux := &struct {
		LegacyImageURL string `json:"imageURL"`
		*Alias
	}{
		Alias: (*Alias)(r),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if r.ImageURL == "" {
		r.ImageURL = aux.LegacyImageURL
	}
	r.CourseType = strings.TrimSpace(r.CourseType)
	r.ensureSlices()

	return nil
}

// ensureSlices replaces nil ingredient and step lists with empty ones so the
// fields are never omitted.
func (r *Recipe) ensureSlices() {
	if r.Ingredients == nil {
		r.Ingredients = []string{}
	}
	if r.Steps == nil {
		r.Steps = []string{}
	}
}

// WithMarkdown returns a copy of r whose MarkdownContent is populated,
// rendering it from the structured fields when it is empty.
func (r Recipe) WithMarkdown() Recipe {
	r.ensureSlices()
	if strings.TrimSpace(r.MarkdownContent) == "" {
		r.MarkdownContent = Markdown(r)
	}
	return r
}
