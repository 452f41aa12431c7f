package recipe

import (
	"fmt"
	"strings"
)

const recipeFields = `
For each recipe, provide:
1. Title
2. A cover photo describing the appearance of the dish if the recipe is followed, use image URL to display the image.
3. List of ingredients with measurements
4. Step-by-step cooking instructions
5. Approximate preparation and cooking time
`

const recipeKeys = `
- title: string
- imageURL: string
- ingredients: string[]
- steps: string[]
- prepTime: string
- cookTime: string
- courseType: string (e.g., "appetizer", "main course", "salad", "dessert", "drink")
`

// IngredientsPrompt builds the prompt for a search by ingredient names.
func IngredientsPrompt(ingredients []string, filter CourseType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I have the following ingredients: %s.\n", strings.Join(ingredients, ", "))
	b.WriteString("Please suggest recipes I can make with these ingredients.\n")
	b.WriteString(courseConstraint(filter))
	b.WriteString(recipeFields)
	b.WriteString("\nFormat the response as a JSON array of objects with the following key-value pairs:")
	b.WriteString(recipeKeys)
	return b.String()
}

// ImagesPrompt builds the prompt for a search by ingredient photos.
func ImagesPrompt(imageCount int, filter CourseType) string {
	what, these := "an image", "this image"
	if imageCount > 1 {
		what, these = "multiple images", "these images"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I'm sending you %s of food ingredients.\n", what)
	fmt.Fprintf(&b, "Please identify all the ingredients visible in %s and suggest 5 recipes I can make with these ingredients.\n", these)
	b.WriteString(courseConstraint(filter))
	b.WriteString(recipeFields)
	b.WriteString("\nFormat the response as a JSON object with a single key \"recipes\" holding an array of objects with the following key-value pairs:")
	b.WriteString(recipeKeys)
	return b.String()
}

func courseConstraint(filter CourseType) string {
	if !filter.Constrained() {
		return ""
	}
	return fmt.Sprintf("Make sure all recipes are specifically for %s dishes.\n", filter)
}
