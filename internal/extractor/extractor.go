// Package extractor находит идентификаторы устройств (VID) в тексте тикета.
//
// Поддерживаются два семейства: 10-значные числовые ID (в том числе с метками
// VID/ID/Serial/Device и с разделителями 4-3-3 или 3-3-4) и 10-символьные
// буквенно-цифровые ID с зарезервированным префиксом 5A.
package extractor

import (
	"regexp"
	"slices"
	"strings"
)

// ReservedPrefix: префикс буквенно-цифровых ID устройств.
const ReservedPrefix = "5A"

const idLength = 10

// Input: текстовые источники тикета.
type Input struct {
	Subject       string
	Description   string
	Conversations []string
	// CustomField: значение структурированного поля со списком VID.
	CustomField string
}

type rule struct {
	pattern   *regexp.Regexp
	normalize func(match []string) (string, bool)
}

var (
	nonDigit       = regexp.MustCompile(`\D`)
	labelPrefix    = regexp.MustCompile(`(?i)^(VID|ID|Serial|Device)\s*`)
	idSeparators   = regexp.MustCompile(`[\s.\-]`)
	bareNumericID  = regexp.MustCompile(`\b\d{10}\b`)
	reservedFormat = regexp.MustCompile(`^5A[A-Z0-9]{8}$`)
)

// rules применяются по порядку к каждому источнику; результаты сливаются в одно множество.
var rules = []rule{
	{bareNumericID, numericID},
	{regexp.MustCompile(`(?i)VID\s*(\d{10})`), numericID},
	{regexp.MustCompile(`(?i)ID\s*(\d{10})`), numericID},
	{regexp.MustCompile(`(?i)Serial\s*(?:Number|#|:)?\s*(\d{10})`), numericID},
	{regexp.MustCompile(`(?i)Device\s*(?:ID|#|:)?\s*(\d{10})`), numericID},
	{regexp.MustCompile(`(\d{4})[- ]?(\d{3})[- ]?(\d{3})`), numericID},
	{regexp.MustCompile(`(\d{3})[- ]?(\d{3})[- ]?(\d{4})`), numericID},

	{regexp.MustCompile(`(?i)\b5A[A-Z0-9]{8}\b`), reservedID},
	{regexp.MustCompile(`(?i)5A[A-Z0-9\-.\s]{8,}`), reservedID},
	{regexp.MustCompile(`(?i)5A[A-Z0-9]{8}`), reservedID},
}

// Extract возвращает отсортированное множество найденных ID. Для пустого ввода результат пустой.
func Extract(in Input) []string {
	found := make(map[string]struct{})

	sources := make([]string, 0, len(in.Conversations)+2)
	sources = append(sources, in.Subject, in.Description)
	sources = append(sources, in.Conversations...)

	for _, text := range sources {
		if strings.TrimSpace(text) == "" {
			continue
		}
		for _, r := range rules {
			for _, m := range r.pattern.FindAllStringSubmatch(text, -1) {
				if id, ok := r.normalize(m); ok {
					found[id] = struct{}{}
				}
			}
		}
	}

	if in.CustomField != "" {
		for _, id := range bareNumericID.FindAllString(in.CustomField, -1) {
			found[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func numericID(m []string) (string, bool) {
	var id string
	if len(m) > 1 && m[1] != "" {
		id = strings.Join(m[1:], "")
	} else {
		id = labelPrefix.ReplaceAllString(m[0], "")
	}
	id = nonDigit.ReplaceAllString(id, "")
	return id, len(id) == idLength
}

// reservedID нормализует 5A-ID. Если после удаления разделителей символов больше десяти,
// берутся первые десять: совпадение могло захватить хвост соседнего слова.
func reservedID(m []string) (string, bool) {
	id := idSeparators.ReplaceAllString(strings.ToUpper(m[0]), "")
	if len(id) > idLength {
		id = id[:idLength]
	}
	return id, IsReservedPrefix(id)
}

// IsReservedPrefix: ID в формате 5A + 8 буквенно-цифровых символов.
func IsReservedPrefix(id string) bool {
	return reservedFormat.MatchString(id)
}

// SearchVariants возвращает варианты написания ID в нижнем регистре для поиска по тексту:
// без разделителей и с группами через пробел, дефис и точку.
func SearchVariants(id string) []string {
	id = strings.ToLower(idSeparators.ReplaceAllString(id, ""))
	if len(id) != idLength {
		return []string{id}
	}

	var groupings [][]int
	if strings.HasPrefix(id, strings.ToLower(ReservedPrefix)) {
		groupings = [][]int{{2, 2, 2, 4}, {4, 2, 4}, {4, 3, 3}}
	} else {
		groupings = [][]int{{4, 3, 3}, {3, 3, 4}}
	}

	variants := []string{id}
	for _, g := range groupings {
		parts := split(id, g)
		for _, sep := range []string{" ", "-", "."} {
			variants = append(variants, strings.Join(parts, sep))
		}
	}
	return variants
}

func split(s string, sizes []int) []string {
	parts := make([]string, 0, len(sizes))
	pos := 0
	for _, n := range sizes {
		parts = append(parts, s[pos:pos+n])
		pos += n
	}
	return parts
}
