package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngredientsPrompt(t *testing.T) {
	p := IngredientsPrompt([]string{"eggs", "spinach"}, CourseAny)
	assert.Contains(t, p, "I have the following ingredients: eggs, spinach.")
	assert.Contains(t, p, "JSON array")
	assert.NotContains(t, p, "Make sure all recipes")

	p = IngredientsPrompt([]string{"eggs"}, CourseAppetizer)
	assert.Contains(t, p, "Make sure all recipes are specifically for appetizer dishes.")
}

func TestImagesPrompt(t *testing.T) {
	one := ImagesPrompt(1, CourseAny)
	assert.Contains(t, one, "an image of food ingredients")
	assert.Contains(t, one, `"recipes"`)

	many := ImagesPrompt(3, CourseDessert)
	assert.Contains(t, many, "multiple images of food ingredients")
	assert.Contains(t, many, "visible in these images")
	assert.Contains(t, many, "specifically for dessert dishes")
}

func TestParseCourseType(t *testing.T) {
	tests := []struct {
		in   string
		want CourseType
	}{
		{"", CourseAny},
		{"any", CourseAny},
		{" Main Course ", CourseMain},
		{"DRINK", CourseDrink},
	}
	for _, tt := range tests {
		got, err := ParseCourseType(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseCourseType("brunch")
	assert.Error(t, err)

	assert.False(t, CourseAny.Constrained())
	assert.False(t, CourseType("").Constrained())
	assert.True(t, CourseSalad.Constrained())
}
