package parse

import (
	"regexp"
	"strings"

	"fieldboard/internal/model"
)

var (
	bracketRe = regexp.MustCompile(`^\s*[\[(]([^\])]+)[\])]\s*(.*)$`)
	prefixRe  = regexp.MustCompile(`^\s*([^:\-–]+?)\s*[:\-–]\s+(.+)$`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// ParsedTitle holds the technician hint and remaining text of an event title.
type ParsedTitle struct {
	Hint  string
	Title string
}

// ParseTitle splits a calendar event title into a technician hint and the
// rest. Recognized forms are "[Alex] Furnace", "(Alex) Furnace",
// "Alex: Furnace" and "Alex - Furnace". A title with no hint is returned
// unchanged with an empty Hint.
func ParseTitle(raw string) ParsedTitle {
	s := strings.TrimSpace(spaceRe.ReplaceAllString(raw, " "))

	if m := bracketRe.FindStringSubmatch(s); m != nil {
		return ParsedTitle{Hint: strings.TrimSpace(m[1]), Title: strings.TrimSpace(m[2])}
	}
	if m := prefixRe.FindStringSubmatch(s); m != nil {
		return ParsedTitle{Hint: strings.TrimSpace(m[1]), Title: strings.TrimSpace(m[2])}
	}
	return ParsedTitle{Title: s}
}

// MatchTechnician resolves a hint to a technician id. The hint matches a
// technician's id, full display name or first name, ignoring case. A first
// name shared by several technicians does not match.
func MatchTechnician(hint string, techs []model.Technician) (string, bool) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return "", false
	}

	for _, t := range techs {
		if strings.EqualFold(t.ID, hint) || strings.EqualFold(t.DisplayName, hint) {
			return t.ID, true
		}
	}

	var match string
	for _, t := range techs {
		first, _, _ := strings.Cut(strings.TrimSpace(t.DisplayName), " ")
		if !strings.EqualFold(first, hint) {
			continue
		}
		if match != "" {
			return "", false
		}
		match = t.ID
	}
	return match, match != ""
}
