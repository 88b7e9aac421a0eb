package domain

import (
	"regexp"
	"strings"
)

// runAccessionRegex matches SRA/ENA run accessions: an SRR or ERR prefix
// followed by at least four digits.
var runAccessionRegex = regexp.MustCompile(`(?:SRR|ERR)\d{4,}`)

// experimentAccessionRegex matches SRA/ENA experiment accessions.
var experimentAccessionRegex = regexp.MustCompile(`^(?:SRX|ERX)\d{4,}$`)

// experimentSearchRegex matches experiment accessions embedded in free text.
var experimentSearchRegex = regexp.MustCompile(`(?:SRX|ERX)\d{4,}`)

// ParseRunAccessions extracts every SRR/ERR run accession from free text,
// deduplicated and in first-seen order. Tokens that do not match are ignored,
// so evidence describing an invalid input simply yields an empty result.
func ParseRunAccessions(text string) []string {
	matches := runAccessionRegex.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// FindExperimentAccession returns the first SRX/ERX experiment accession
// found in free text, or "" when the text contains none.
func FindExperimentAccession(text string) string {
	return experimentSearchRegex.FindString(text)
}

// RunPrefixFor returns the run-accession prefix matching an experiment
// accession: "SRR" for SRX experiments, "ERR" for ERX experiments, and ""
// when the accession carries neither prefix.
func RunPrefixFor(experimentAccession string) string {
	switch {
	case strings.HasPrefix(experimentAccession, "SRX"):
		return "SRR"
	case strings.HasPrefix(experimentAccession, "ERX"):
		return "ERR"
	default:
		return ""
	}
}

// ValidExperimentAccession reports whether s looks like an SRX/ERX
// experiment accession.
func ValidExperimentAccession(s string) bool {
	return experimentAccessionRegex.MatchString(s)
}
