package workflow

import (
	"fmt"
	"strings"

	"github.com/seqcore/sra-metadata-service/internal/domain"
)

// collectionPrompt builds the research question for one evidence pass. The
// requested fields are the ones still missing at the current level. A state
// without a resolved accession additionally asks for the accession itself,
// which the sub-agent can read off the Entrez record.
func collectionPrompt(st *State) string {
	var b strings.Builder
	b.WriteString("# Instructions\n")
	if st.ExperimentAccession == "" {
		fmt.Fprintf(&b, "For the SRA record with Entrez ID %d in the %s database, first report the SRX or ERX experiment accession, then find the following dataset metadata:\n",
			st.EntrezID, st.Database)
	} else {
		fmt.Fprintf(&b, "For the SRA experiment accession %s, find the following dataset metadata:\n", st.ExperimentAccession)
	}
	for _, fd := range st.MissingFields() {
		fmt.Fprintf(&b, " - %s\n", fd.Description)
	}
	b.WriteString("# IMPORTANT NOTES\n")
	b.WriteString(" - If the dataset is not single cell, then some of the other metadata fields may not be applicable\n")
	b.WriteString(" - Try to confirm all metadata values with two data sources\n")
	b.WriteString(" - Do NOT make assumptions about the metadata values; find explicit evidence")
	return b.String()
}

// extractionSystemPrompt builds the structured-extraction instruction for
// the given level, enumerating exactly that level's fields with their
// allowed values.
func extractionSystemPrompt(level domain.MetadataLevel) string {
	var b strings.Builder
	b.WriteString("# Instructions\n")
	b.WriteString(" - Your job is to extract metadata from the provided text on a Sequence Read Archive (SRA) experiment.\n")
	b.WriteString(" - The provided text is from 1 or more attempts to find the metadata, so you may need to combine information from multiple sources.\n")
	b.WriteString(" - If there are multiple sources, use majority rules to determine the metadata values, but weigh ambiguous values less (e.g., \"unknown\", \"likely\", or \"assumed\").\n")
	b.WriteString(" - If there is not enough information to determine the metadata, respond with \"unsure\" or \"other\", depending on the metadata field.\n")
	if level == domain.LevelPrimary {
		b.WriteString(" - If a 10X Genomics library preparation method is not selected, then the 10X technology should be \"not_applicable\".\n")
	}
	b.WriteString(" - Keep free text responses short; use less than 100 characters.\n")
	b.WriteString(" - Respond with a single JSON object matching the schema below, with no surrounding prose.\n")
	b.WriteString("# The JSON object must have exactly these keys\n")
	for _, fd := range level.FieldDescriptions() {
		fmt.Fprintf(&b, " - %q: %s %s\n", fd.Name, fd.Description, fieldConstraint(fd.Name))
	}
	return strings.TrimRight(b.String(), "\n")
}

// fieldConstraint renders the allowed values or length cap for one field.
func fieldConstraint(name string) string {
	switch name {
	case "is_illumina", "is_single_cell", "is_paired_end":
		vals := domain.TriStateValues()
		quoted := make([]string, len(vals))
		for i, v := range vals {
			quoted[i] = fmt.Sprintf("%q", string(v))
		}
		return "One of: " + strings.Join(quoted, ", ") + "."
	case "lib_prep":
		vals := domain.LibPrepValues()
		quoted := make([]string, len(vals))
		for i, v := range vals {
			quoted[i] = fmt.Sprintf("%q", string(v))
		}
		return "One of: " + strings.Join(quoted, ", ") + "."
	case "tech_10x":
		vals := domain.Tech10xValues()
		quoted := make([]string, len(vals))
		for i, v := range vals {
			quoted[i] = fmt.Sprintf("%q", string(v))
		}
		return "One of: " + strings.Join(quoted, ", ") + "."
	case "cell_prep":
		vals := domain.CellPrepValues()
		quoted := make([]string, len(vals))
		for i, v := range vals {
			quoted[i] = fmt.Sprintf("%q", string(v))
		}
		return "One of: " + strings.Join(quoted, ", ") + "."
	case "organism":
		vals := domain.OrganismValues()
		quoted := make([]string, len(vals))
		for i, v := range vals {
			quoted[i] = fmt.Sprintf("%q", string(v))
		}
		return "One of: " + strings.Join(quoted, ", ") + "."
	case "tissue":
		return fmt.Sprintf("Free text, %d characters or fewer.", domain.MaxTissueLen)
	case "tissue_ontology_term_id":
		return `Free text (e.g., "UBERON:0002371"); empty string when unknown.`
	default:
		return fmt.Sprintf("Free text, %d characters or fewer.", domain.MaxFreeTextLen)
	}
}

// routerSystemPrompt instructs the completeness oracle. The oracle sees the
// latest extraction summary and answers with a single binary choice.
const routerSystemPrompt = `# Instructions
 - You are a helpful bioinformatician who is evaluating the metadata extracted from an SRA experiment.
 - You will be provided with the extracted metadata and will determine if the metadata is complete.
 - Metadata values of "unsure" or "other" are considered incomplete.
 - "not_applicable" is considered complete.
# Notes
 - The organism may be "other" if the organism is not a common model organism.
 - If the library preparation method is not 10X Genomics, then there is no need to provide a 10X technology.
# Response
 - Select "STOP" if the task is complete or "CONTINUE" if more information is needed.
 - Respond with a single JSON object of the form {"choice": "STOP"} or {"choice": "CONTINUE"}, with no surrounding prose.`

// continueFeedback is recorded in the transcript when the oracle requests
// another evidence pass, steering the next pass toward a fresh approach.
func continueFeedback(accession string) string {
	return fmt.Sprintf("At least some of the metadata for %s is incomplete (uncertain).\nPlease try to provide more information using a different approach.", accession)
}

// stopFeedback is recorded in the transcript when the oracle accepts the
// extraction.
func stopFeedback(accession string) string {
	return fmt.Sprintf("Enough of the metadata has been extracted for %s.", accession)
}

// secondarySkipFeedback is recorded when routing runs at the secondary
// level, which never consults the oracle.
const secondarySkipFeedback = "No completeness evaluation needed for secondary metadata."

// routeChoice is the completeness oracle's structured reply.
type routeChoice struct {
	Choice domain.Route `json:"choice"`
}

// Validate checks the choice against the two recognized routes.
func (c *routeChoice) Validate() error {
	switch c.Choice {
	case domain.RouteContinue, domain.RouteStop:
		return nil
	default:
		return domain.NewValidationError("choice", fmt.Sprintf("unknown route %q", c.Choice))
	}
}

// resolveRunsQuestion builds the run-resolution question for an experiment
// accession. For accessions that are not SRX/ERX it returns ok=false and a
// problem description instead; recording that text as evidence lets the
// run parser find nothing without failing the graph.
func resolveRunsQuestion(accession string) (string, bool) {
	switch domain.RunPrefixFor(accession) {
	case "SRR":
		return fmt.Sprintf("Find the SRR accessions for %s. Provide a complete list of SRR accessions.", accession), true
	case "ERR":
		return fmt.Sprintf("Find the ERR accessions for %s. Provide a complete list of ERR accessions.", accession), true
	default:
		return fmt.Sprintf("The wrong accession was provided: %q. The accession must start with \"SRX\" or \"ERX\", so no run accessions can be resolved.", accession), false
	}
}
