package recipe

import (
	"fmt"
	"strings"
)

// CourseType is the dish category used both as a prompt constraint and a display filter.
type CourseType string

const (
	CourseAny       CourseType = "any"
	CourseAppetizer CourseType = "appetizer"
	CourseMain      CourseType = "main course"
	CourseSalad     CourseType = "salad"
	CourseDessert   CourseType = "dessert"
	CourseDrink     CourseType = "drink"
)

// CourseTypes lists every accepted filter value.
var CourseTypes = []CourseType{CourseAny, CourseAppetizer, CourseMain, CourseSalad, CourseDessert, CourseDrink}

// ParseCourseType maps a filter value to a CourseType. An empty value means CourseAny.
func ParseCourseType(s string) (CourseType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CourseAny, nil
	}
	for _, ct := range CourseTypes {
		if string(ct) == s {
			return ct, nil
		}
	}
	return "", fmt.Errorf("unknown course type %q", s)
}

// Constrained reports whether the filter narrows results to a single course.
func (c CourseType) Constrained() bool {
	return c != "" && c != CourseAny
}
