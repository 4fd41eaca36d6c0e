package utils

import (
	"regexp"
	"strings"
)

var separatorRe = regexp.MustCompile(`[\s\-/]+`)

// serviceAbbreviations maps shorthand and common spellings to canonical service tags
var serviceAbbreviations = map[string]string{
	"er":                "urgent_care",
	"emergency":         "urgent_care",
	"urgent":            "urgent_care",
	"urgentcare":        "urgent_care",
	"gp":                "general",
	"primary_care":      "general",
	"checkup":           "general",
	"dentist":           "dental",
	"dentistry":         "dental",
	"maternity":         "maternal_care",
	"prenatal":          "maternal_care",
	"antenatal":         "maternal_care",
	"obgyn":             "maternal_care",
	"mental":            "mental_health",
	"behavioral_health": "mental_health",
	"psychiatry":        "mental_health",
	"peds":              "pediatric",
	"paediatric":        "pediatric",
	"pediatrics":        "pediatric",
	"vaccine":           "vaccination",
	"vaccines":          "vaccination",
	"immunization":      "vaccination",
	"immunisation":      "vaccination",
	"specialist":        "specialty",
	"lab":               "diagnostic",
	"labs":              "diagnostic",
	"imaging":           "diagnostic",
	"diagnostics":       "diagnostic",
}

// NormalizeServiceTag lowercases a free-form service name, joins words with
// underscores, and resolves known abbreviations. Unknown names are returned in
// normalised form so the caller can reject them.
func NormalizeServiceTag(raw string) string {
	tag := strings.ToLower(strings.TrimSpace(raw))
	if tag == "" {
		return ""
	}
	tag = separatorRe.ReplaceAllString(tag, "_")
	tag = strings.Trim(tag, "_")

	if canonical, ok := serviceAbbreviations[tag]; ok {
		return canonical
	}
	return tag
}
