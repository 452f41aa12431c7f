package recipe

import (
	"fmt"
	"strings"
)

const notSpecified = "Not specified"

// Markdown renders a recipe as a Markdown document: title heading, optional
// course type, bulleted ingredients, numbered instructions and timings.
func Markdown(r Recipe) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	if r.CourseType != "" {
		fmt.Fprintf(&b, "## Course Type\n%s\n\n", r.CourseType)
	}

	b.WriteString("## Ingredients\n")
	for _, ingredient := range r.Ingredients {
		fmt.Fprintf(&b, "- %s\n", ingredient)
	}

	b.WriteString("\n## Instructions\n")
	for i, step := range r.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}

	b.WriteString("\n## Time\n")
	fmt.Fprintf(&b, "- Preparation: %s\n", orNotSpecified(r.PrepTime))
	fmt.Fprintf(&b, "- Cooking: %s", orNotSpecified(r.CookTime))

	return b.String()
}

func orNotSpecified(s string) string {
	if s == "" {
		return notSpecified
	}
	return s
}
