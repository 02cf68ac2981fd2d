package render

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Funcs returns the helpers available in templates.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"capitalize": capitalize,
		"upper":      func(v any) string { return strings.ToUpper(fmt.Sprint(v)) },
		"lower":      func(v any) string { return strings.ToLower(fmt.Sprint(v)) },
		"title":      title,
		"join":       join,
		"sum":        sum,
		"mean":       mean,
		"min":        minOf,
		"max":        maxOf,
	}
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(v any) string {
	s := fmt.Sprint(v)
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToTitle(r)) + strings.ToLower(s[size:])
}

// title capitalizes every word, a word being a run of letters.
func title(v any) string {
	s := fmt.Sprint(v)
	var b strings.Builder
	b.Grow(len(s))
	inWord := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) && !inWord:
			b.WriteRune(unicode.ToTitle(r))
			inWord = true
		case unicode.IsLetter(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
			inWord = false
		}
	}
	return b.String()
}

// join concatenates the elements of a slice. It takes the separator first so
// it reads well in a pipeline: {{.cols.name | join ", "}}.
func join(sep string, values any) (string, error) {
	items, err := toSlice(values)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprint(it)
	}
	return strings.Join(parts, sep), nil
}

func sum(values any) (float64, error) {
	nums, err := toFloats(values)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, n := range nums {
		total += n
	}
	return total, nil
}

func mean(values any) (float64, error) {
	nums, err := toFloats(values)
	if err != nil {
		return 0, err
	}
	if len(nums) == 0 {
		return 0, errors.New("mean of an empty list")
	}
	total, _ := sum(nums)
	return total / float64(len(nums)), nil
}

func minOf(values any) (float64, error) {
	return reduce(values, "min", math.Min)
}

func maxOf(values any) (float64, error) {
	return reduce(values, "max", math.Max)
}

func reduce(values any, name string, f func(a, b float64) float64) (float64, error) {
	nums, err := toFloats(values)
	if err != nil {
		return 0, err
	}
	if len(nums) == 0 {
		return 0, errors.Errorf("%s of an empty list", name)
	}
	acc := nums[0]
	for _, n := range nums[1:] {
		acc = f(acc, n)
	}
	return acc, nil
}

func toSlice(values any) ([]any, error) {
	if items, ok := values.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, errors.Errorf("expected a list, got %T", values)
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

func toFloats(values any) ([]float64, error) {
	if nums, ok := values.([]float64); ok {
		return nums, nil
	}
	items, err := toSlice(values)
	if err != nil {
		return nil, err
	}
	nums := make([]float64, len(items))
	for i, it := range items {
		switch n := it.(type) {
		case float64:
			nums[i] = n
		case float32:
			nums[i] = float64(n)
		case int:
			nums[i] = float64(n)
		case int64:
			nums[i] = float64(n)
		default:
			return nil, errors.Errorf("element %d is %T, not a number; declare the column type with -t", i, it)
		}
	}
	return nums, nil
}
