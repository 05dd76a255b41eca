// Package textutil приводит HTML тел сообщений к одной строке простого текста.
package textutil

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = newStrictPolicy()

func newStrictPolicy() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}

// StripHTML удаляет теги, раскрывает сущности и схлопывает пробелы.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	return CollapseSpaces(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// CollapseSpaces заменяет любые последовательности пробельных символов одним пробелом.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate обрезает s до n символов (рун), не разрывая UTF-8.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
