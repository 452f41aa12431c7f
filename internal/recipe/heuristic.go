package recipe

import (
	"regexp"
	"strings"
)

var (
	blockMarkerRe = regexp.MustCompile(`(?i)recipe \d+:|title:`)

	titleRe      = regexp.MustCompile(`(?i)title:?\s*([^\n]+)`)
	prepTimeRe   = regexp.MustCompile(`(?i)(?:preparation time|prep time):?\s*([^\n]+)`)
	cookTimeRe   = regexp.MustCompile(`(?i)(?:cooking time|cook time):?\s*([^\n]+)`)
	courseTypeRe = regexp.MustCompile(`(?i)(?:course type|type):?\s*([^\n]+)`)

	ingredientsStartRe = regexp.MustCompile(`(?i)ingredients:?\s*`)
	ingredientsEndRe   = regexp.MustCompile(`(?i)steps:|instructions:|preparation time:`)
	stepsStartRe       = regexp.MustCompile(`(?i)(?:steps|instructions):?\s*`)
	stepsEndRe         = regexp.MustCompile(`(?i)preparation time:|cooking time:|prep time:|cook time:`)

	stepMarkerRe   = regexp.MustCompile(`\d+\.\s*`)
	strayNumeralRe = regexp.MustCompile(`^[0-9.]+$`)
	listMarkerRe   = regexp.MustCompile(`^(?:[-*•]\s*|\d+[.)]\s+)`)
)

// ParseText is the best-effort recovery path for model output that is not
// valid JSON. The text is cut into blocks at "Recipe N:" markers and before
// every "Title:" label; each block that yields a title becomes one recipe.
func ParseText(text string) []Recipe {
	recipes := []Recipe{}
	for _, block := range splitBlocks(text) {
		r, ok := parseBlock(block)
		if !ok {
			continue
		}
		recipes = append(recipes, r)
	}
	return recipes
}

// splitBlocks drops "Recipe N:" markers and starts a new block right before
// each "Title:" label. Blank blocks are discarded.
func splitBlocks(text string) []string {
	var blocks []string
	add := func(b string) {
		if strings.TrimSpace(b) != "" {
			blocks = append(blocks, b)
		}
	}

	start := 0
	for _, m := range blockMarkerRe.FindAllStringIndex(text, -1) {
		add(text[start:m[0]])
		if strings.HasPrefix(strings.ToLower(text[m[0]:m[1]]), "title") {
			start = m[0]
		} else {
			start = m[1]
		}
	}
	add(text[start:])
	return blocks
}

func parseBlock(block string) (Recipe, bool) {
	title := firstGroup(titleRe, block)
	if title == "" {
		return Recipe{}, false
	}

	r := Recipe{
		Title:       title,
		Ingredients: splitIngredients(section(block, ingredientsStartRe, ingredientsEndRe)),
		Steps:       splitSteps(section(block, stepsStartRe, stepsEndRe)),
		PrepTime:    firstGroup(prepTimeRe, block),
		CookTime:    firstGroup(cookTimeRe, block),
		CourseType:  firstGroup(courseTypeRe, block),
	}
	if r.CourseType == "" {
		r.CourseType = string(CourseMain)
	}
	r.MarkdownContent = Markdown(r)
	return r, true
}

// firstGroup returns the trimmed first capture of re in s, or "".
func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// section returns the text after the first match of start, up to the first
// match of end that follows it or the end of the block.
func section(block string, start, end *regexp.Regexp) string {
	loc := start.FindStringIndex(block)
	if loc == nil {
		return ""
	}
	rest := block[loc[1]:]
	if stop := end.FindStringIndex(rest); stop != nil {
		return rest[:stop[0]]
	}
	return rest
}

func splitIngredients(s string) []string {
	out := []string{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strayNumeralRe.MatchString(line) {
			continue
		}
		line = strings.TrimSpace(listMarkerRe.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func splitSteps(s string) []string {
	out := []string{}
	for _, step := range stepMarkerRe.Split(s, -1) {
		step = strings.TrimSpace(step)
		if step == "" {
			continue
		}
		out = append(out, step)
	}
	return out
}
