package policy

import (
	"regexp"
	"sort"
	"strconv"
)

// MaxTemplateVars is the most placeholders a template body may declare.
const MaxTemplateVars = 10

type PlaceholderReason string

const (
	NonContiguousPlaceholders PlaceholderReason = "NonContiguousPlaceholders"
	TooManyVariables          PlaceholderReason = "TooManyVariables"
)

type ValidationResult struct {
	OK     bool
	Reason PlaceholderReason
	// Count is the number of placeholders found.
	Count int
}

var placeholderRe = regexp.MustCompile(`\{\{(\d+)\}\}`)

// Placeholders returns the indices of every {{n}} token in body, sorted,
// duplicates kept.
func Placeholders(body string) []int {
	matches := placeholderRe.FindAllStringSubmatch(body, -1)
	idx := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			// Too large for int; it can never be part of 1..k.
			n = -1
		}
		idx = append(idx, n)
	}
	sort.Ints(idx)
	return idx
}

// ValidatePlaceholders requires the placeholder indices to be exactly 1..k
// with k at most MaxTemplateVars.
func ValidatePlaceholders(body string) ValidationResult {
	idx := Placeholders(body)
	res := ValidationResult{Count: len(idx)}
	for i, n := range idx {
		if n != i+1 {
			res.Reason = NonContiguousPlaceholders
			return res
		}
	}
	if len(idx) > MaxTemplateVars {
		res.Reason = TooManyVariables
		return res
	}
	res.OK = true
	return res
}

var templateNameRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidateTemplateName checks the kebab-case naming rule for templates.
func ValidateTemplateName(name string) error {
	if len(name) < 3 || len(name) > 40 {
		return invalid("name", ErrInvalidTemplateName, "%q must be 3-40 characters", name)
	}
	if !templateNameRe.MatchString(name) {
		return invalid("name", ErrInvalidTemplateName, "%q must be kebab-case", name)
	}
	return nil
}
