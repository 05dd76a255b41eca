package classifier

import "strings"

type field int

const (
	fieldNone field = iota
	fieldPrimary
	fieldIssue
	fieldImpact
	fieldTimeline
	fieldNotes
)

var labels = []struct {
	prefix string
	field  field
}{
	{"**PRIMARY REASON:**", fieldPrimary},
	{"**SPECIFIC ISSUE:**", fieldIssue},
	{"**CUSTOMER IMPACT:**", fieldImpact},
	{"**TIMELINE:**", fieldTimeline},
	{"**ADDITIONAL NOTES:**", fieldNotes},
}

// ParseResponse разбирает ответ модели с жирными метками разделов.
// Строки до первой метки отбрасываются, продолжения приклеиваются через пробел.
func ParseResponse(text string) Result {
	var r Result
	current := fieldNone

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		matched := false
		for _, l := range labels {
			if rest, ok := strings.CutPrefix(line, l.prefix); ok {
				current = l.field
				*r.slot(current) = strings.TrimSpace(rest)
				matched = true
				break
			}
		}
		if matched || current == fieldNone {
			continue
		}

		dst := r.slot(current)
		if *dst == "" {
			*dst = line
		} else {
			*dst += " " + line
		}
	}
	return r
}

func (r *Result) slot(f field) *string {
	switch f {
	case fieldPrimary:
		return &r.PrimaryReason
	case fieldIssue:
		return &r.SpecificIssue
	case fieldImpact:
		return &r.CustomerImpact
	case fieldTimeline:
		return &r.Timeline
	default:
		return &r.AdditionalNotes
	}
}
