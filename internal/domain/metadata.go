package domain

import (
	"fmt"
	"strings"
)

// Maximum stored lengths for free-text metadata fields. Values over the cap
// are truncated with a trailing ellipsis before storage.
const (
	MaxTissueLen   = 80
	MaxFreeTextLen = 100
)

// TriState is a yes/no answer that the evidence may leave unresolved.
type TriState string

const (
	TriStateYes    TriState = "yes"
	TriStateNo     TriState = "no"
	TriStateUnsure TriState = "unsure"
)

// TriStateValues returns the accepted answer values in vocabulary order.
func TriStateValues() []TriState {
	return []TriState{TriStateYes, TriStateNo, TriStateUnsure}
}

// Valid reports whether t is a recognized answer value.
func (t TriState) Valid() bool {
	switch t {
	case TriStateYes, TriStateNo, TriStateUnsure:
		return true
	default:
		return false
	}
}

// Complete reports whether t is a resolved answer. "unsure" is a retry
// signal for the router, not a validity problem.
func (t TriState) Complete() bool {
	return t == TriStateYes || t == TriStateNo
}

// LibPrep is the single-cell library preparation technology.
// These values must match the vocabulary stored in srx_metadata.lib_prep.
type LibPrep string

const (
	LibPrep10xGenomics   LibPrep = "10x_Genomics"
	LibPrepSmartSeq      LibPrep = "Smart-seq"
	LibPrepSmartSeq2     LibPrep = "Smart-seq2"
	LibPrepSmartSeq3     LibPrep = "Smart-seq3"
	LibPrepCELSeq        LibPrep = "CEL-seq"
	LibPrepCELSeq2       LibPrep = "CEL-seq2"
	LibPrepDropSeq       LibPrep = "Drop-seq"
	LibPrepInDrops       LibPrep = "indrops"
	LibPrepScaleBio      LibPrep = "Scale Bio"
	LibPrepParse         LibPrep = "Parse"
	LibPrepParseEvercode LibPrep = "Parse_evercode"
	LibPrepParseSplitSeq LibPrep = "Parse_split-seq"
	LibPrepFluent        LibPrep = "Fluent"
	LibPrepPlexWell      LibPrep = "plexWell"
	LibPrepMARSSeq       LibPrep = "MARS-seq"
	LibPrepBDRhapsody    LibPrep = "BD_Rhapsody"
	LibPrepOther         LibPrep = "other"
	LibPrepNotApplicable LibPrep = "not_applicable"
)

// LibPrepValues returns the accepted library preparation values in
// vocabulary order.
func LibPrepValues() []LibPrep {
	return []LibPrep{
		LibPrep10xGenomics, LibPrepSmartSeq, LibPrepSmartSeq2,
		LibPrepSmartSeq3, LibPrepCELSeq, LibPrepCELSeq2,
		LibPrepDropSeq, LibPrepInDrops, LibPrepScaleBio,
		LibPrepParse, LibPrepParseEvercode, LibPrepParseSplitSeq,
		LibPrepFluent, LibPrepPlexWell, LibPrepMARSSeq,
		LibPrepBDRhapsody, LibPrepOther, LibPrepNotApplicable,
	}
}

// Valid reports whether l is in the accepted vocabulary.
func (l LibPrep) Valid() bool {
	for _, v := range LibPrepValues() {
		if l == v {
			return true
		}
	}
	return false
}

// Complete reports whether l is a resolved value; "other" signals that the
// evidence did not pin the technology down.
func (l LibPrep) Complete() bool {
	return l != LibPrepOther
}

// Tech10x is the 10x Genomics sub-technology, meaningful only when the
// library preparation is 10x_Genomics.
// These values must match the vocabulary stored in srx_metadata.tech_10x.
type Tech10x string

const (
	Tech10x3PrimeGEX        Tech10x = "3_prime_gex"
	Tech10x5PrimeGEX        Tech10x = "5_prime_gex"
	Tech10xATAC             Tech10x = "atac"
	Tech10xMultiome         Tech10x = "multiome"
	Tech10xFlex             Tech10x = "flex"
	Tech10xVDJ              Tech10x = "vdj"
	Tech10xFixedRNA         Tech10x = "fixed_rna"
	Tech10xCellPlex         Tech10x = "cellplex"
	Tech10xCNV              Tech10x = "cnv"
	Tech10xFeatureBarcoding Tech10x = "feature_barcoding"
	Tech10xOther            Tech10x = "other"
	Tech10xNotApplicable    Tech10x = "not_applicable"
)

// Tech10xValues returns the accepted 10x sub-technology values in
// vocabulary order.
func Tech10xValues() []Tech10x {
	return []Tech10x{
		Tech10x3PrimeGEX, Tech10x5PrimeGEX, Tech10xATAC,
		Tech10xMultiome, Tech10xFlex, Tech10xVDJ,
		Tech10xFixedRNA, Tech10xCellPlex, Tech10xCNV,
		Tech10xFeatureBarcoding, Tech10xOther, Tech10xNotApplicable,
	}
}

// Valid reports whether t is in the accepted vocabulary.
func (t Tech10x) Valid() bool {
	for _, v := range Tech10xValues() {
		if t == v {
			return true
		}
	}
	return false
}

// Complete reports whether t is a resolved value. "not_applicable" is
// complete: a non-10x library needs no sub-technology opinion.
func (t Tech10x) Complete() bool {
	return t != Tech10xOther
}

// CellPrep distinguishes single-nucleus from single-cell preparations.
// These values must match the vocabulary stored in srx_metadata.cell_prep.
type CellPrep string

const (
	CellPrepSingleNucleus CellPrep = "single_nucleus"
	CellPrepSingleCell    CellPrep = "single_cell"
	CellPrepUnsure        CellPrep = "unsure"
	CellPrepNotApplicable CellPrep = "not_applicable"
)

// CellPrepValues returns the accepted cell preparation values in
// vocabulary order.
func CellPrepValues() []CellPrep {
	return []CellPrep{CellPrepSingleNucleus, CellPrepSingleCell, CellPrepUnsure, CellPrepNotApplicable}
}

// Valid reports whether c is in the accepted vocabulary.
func (c CellPrep) Valid() bool {
	switch c {
	case CellPrepSingleNucleus, CellPrepSingleCell, CellPrepUnsure, CellPrepNotApplicable:
		return true
	default:
		return false
	}
}

// Complete reports whether c is a resolved value.
func (c CellPrep) Complete() bool {
	return c != CellPrepUnsure
}

// Organism is the sequenced organism, restricted to common model organisms
// plus catch-all values for metagenomes and everything else.
// These values must match the vocabulary stored in srx_metadata.organism.
type Organism string

const (
	OrganismHuman        Organism = "Homo sapiens"
	OrganismMouse        Organism = "Mus musculus"
	OrganismRat          Organism = "Rattus norvegicus"
	OrganismMacaque      Organism = "Macaca mulatta"
	OrganismMarmoset     Organism = "Callithrix jacchus"
	OrganismHorse        Organism = "Equus caballus"
	OrganismDog          Organism = "Canis lupus"
	OrganismBovine       Organism = "Bos taurus"
	OrganismSheep        Organism = "Ovis aries"
	OrganismPig          Organism = "Sus scrofa"
	OrganismRabbit       Organism = "Oryctolagus cuniculus"
	OrganismNakedMoleRat Organism = "Heterocephalus glaber"
	OrganismChimpanzee   Organism = "Pan troglodytes"
	OrganismGorilla      Organism = "Gorilla gorilla"
	OrganismChicken      Organism = "Gallus gallus"
	OrganismFrog         Organism = "Xenopus tropicalis"
	OrganismZebrafish    Organism = "Danio rerio"
	OrganismFruitFly     Organism = "Drosophila melanogaster"
	OrganismRoundworm    Organism = "Caenorhabditis elegans"
	OrganismMosquito     Organism = "Anopheles gambiae"
	OrganismBloodFluke   Organism = "Schistosoma mansoni"
	OrganismThaleCress   Organism = "Arabidopsis thaliana"
	OrganismRice         Organism = "Oryza sativa"
	OrganismTomato       Organism = "Solanum lycopersicum"
	OrganismCorn         Organism = "Zea mays"
	OrganismMetagenome   Organism = "metagenome"
	OrganismOther        Organism = "other"
)

// OrganismValues returns the accepted organism values in vocabulary order.
func OrganismValues() []Organism {
	return []Organism{
		OrganismHuman, OrganismMouse, OrganismRat, OrganismMacaque,
		OrganismMarmoset, OrganismHorse, OrganismDog, OrganismBovine,
		OrganismSheep, OrganismPig, OrganismRabbit, OrganismNakedMoleRat,
		OrganismChimpanzee, OrganismGorilla, OrganismChicken, OrganismFrog,
		OrganismZebrafish, OrganismFruitFly, OrganismRoundworm, OrganismMosquito,
		OrganismBloodFluke, OrganismThaleCress, OrganismRice, OrganismTomato,
		OrganismCorn, OrganismMetagenome, OrganismOther,
	}
}

// Valid reports whether o is in the accepted vocabulary.
func (o Organism) Valid() bool {
	for _, v := range OrganismValues() {
		if o == v {
			return true
		}
	}
	return false
}

// Complete reports whether o is a resolved value. "other" is legitimate for
// uncommon organisms but still counts as unresolved.
func (o Organism) Complete() bool {
	return o != OrganismOther
}

// PrimaryMetadata holds the platform and assay facts extracted in the first
// workflow pass. JSON tags define the structured-output wire format and match
// the srx_metadata column names.
type PrimaryMetadata struct {
	IsIllumina   TriState `json:"is_illumina"`
	IsSingleCell TriState `json:"is_single_cell"`
	IsPairedEnd  TriState `json:"is_paired_end"`
	LibPrep      LibPrep  `json:"lib_prep"`
	Tech10x      Tech10x  `json:"tech_10x"`
	CellPrep     CellPrep `json:"cell_prep"`
}

// Validate checks every field against its closed vocabulary.
func (m *PrimaryMetadata) Validate() error {
	if !m.IsIllumina.Valid() {
		return NewValidationError("is_illumina", fmt.Sprintf("unknown value %q", m.IsIllumina))
	}
	if !m.IsSingleCell.Valid() {
		return NewValidationError("is_single_cell", fmt.Sprintf("unknown value %q", m.IsSingleCell))
	}
	if !m.IsPairedEnd.Valid() {
		return NewValidationError("is_paired_end", fmt.Sprintf("unknown value %q", m.IsPairedEnd))
	}
	if !m.LibPrep.Valid() {
		return NewValidationError("lib_prep", fmt.Sprintf("unknown value %q", m.LibPrep))
	}
	if !m.Tech10x.Valid() {
		return NewValidationError("tech_10x", fmt.Sprintf("unknown value %q", m.Tech10x))
	}
	if !m.CellPrep.Valid() {
		return NewValidationError("cell_prep", fmt.Sprintf("unknown value %q", m.CellPrep))
	}
	return nil
}

// Normalize enforces cross-field policy: a non-10x library preparation makes
// any 10x sub-technology opinion moot, so the value is forced to
// not_applicable regardless of what the oracle returned.
func (m *PrimaryMetadata) Normalize() {
	if m.LibPrep != LibPrep10xGenomics {
		m.Tech10x = Tech10xNotApplicable
	}
}

// IncompleteFields returns the column names of fields whose values are still
// unresolved. An empty result means the extraction is complete.
func (m *PrimaryMetadata) IncompleteFields() []string {
	var out []string
	if !m.IsIllumina.Complete() {
		out = append(out, "is_illumina")
	}
	if !m.IsSingleCell.Complete() {
		out = append(out, "is_single_cell")
	}
	if !m.IsPairedEnd.Complete() {
		out = append(out, "is_paired_end")
	}
	if !m.LibPrep.Complete() {
		out = append(out, "lib_prep")
	}
	if !m.Tech10x.Complete() {
		out = append(out, "tech_10x")
	}
	if !m.CellPrep.Complete() {
		out = append(out, "cell_prep")
	}
	return out
}

// SecondaryMetadata holds the biological-context facts extracted in the
// second workflow pass. Free-text fields are truncated before storage.
type SecondaryMetadata struct {
	Organism             Organism `json:"organism"`
	Tissue               string   `json:"tissue"`
	TissueOntologyTermID string   `json:"tissue_ontology_term_id,omitempty"`
	Disease              string   `json:"disease"`
	Perturbation         string   `json:"perturbation"`
	CellLine             string   `json:"cell_line"`
}

// Validate checks the organism against its closed vocabulary. The free-text
// fields accept anything; length is handled by Truncate.
func (m *SecondaryMetadata) Validate() error {
	if !m.Organism.Valid() {
		return NewValidationError("organism", fmt.Sprintf("unknown value %q", m.Organism))
	}
	return nil
}

// Truncate caps every free-text field at its storage limit.
func (m *SecondaryMetadata) Truncate() {
	m.Tissue = TruncateField(m.Tissue, MaxTissueLen)
	m.TissueOntologyTermID = TruncateField(m.TissueOntologyTermID, MaxFreeTextLen)
	m.Disease = TruncateField(m.Disease, MaxFreeTextLen)
	m.Perturbation = TruncateField(m.Perturbation, MaxFreeTextLen)
	m.CellLine = TruncateField(m.CellLine, MaxFreeTextLen)
}

// TruncateField caps s at max runes, marking the cut with a trailing
// ellipsis so truncation stays visible downstream.
func TruncateField(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// FieldDescription pairs a metadata column with the question the evidence
// must answer for it.
type FieldDescription struct {
	Name        string
	Description string
}

// primaryFieldDescriptions lists the primary fields in extraction order.
var primaryFieldDescriptions = []FieldDescription{
	{Name: "is_illumina", Description: "Is the dataset Illumina sequence data?"},
	{Name: "is_single_cell", Description: "Is the dataset single cell RNA-seq data?"},
	{Name: "is_paired_end", Description: "Is the dataset paired-end sequencing data?"},
	{Name: "lib_prep", Description: "Which scRNA-seq library preparation technology?"},
	{Name: "tech_10x", Description: "If 10X Genomics, which particular 10X technology?"},
	{Name: "cell_prep", Description: "Single nucleus or single cell RNA sequencing?"},
}

// secondaryFieldDescriptions lists the secondary fields in extraction order.
var secondaryFieldDescriptions = []FieldDescription{
	{Name: "organism", Description: "Which organism was sequenced?"},
	{Name: "tissue", Description: "Which tissue was sequenced?"},
	{Name: "tissue_ontology_term_id", Description: "The Uberon ontology term ID for the tissue, if known?"},
	{Name: "disease", Description: "Any disease information?"},
	{Name: "perturbation", Description: "Any treatment/perturbation information?"},
	{Name: "cell_line", Description: "Any cell line information?"},
}

// FieldDescriptions returns the metadata fields extracted at this level,
// in extraction order.
func (l MetadataLevel) FieldDescriptions() []FieldDescription {
	if l == LevelSecondary {
		return secondaryFieldDescriptions
	}
	return primaryFieldDescriptions
}

// ExtractionResult is the typed outcome of one extraction pass. Exactly one
// variant is populated, selected by Level.
type ExtractionResult struct {
	Level     MetadataLevel
	Primary   *PrimaryMetadata
	Secondary *SecondaryMetadata
}

// Validate checks that the populated variant matches Level and that its
// field values are in vocabulary.
func (r *ExtractionResult) Validate() error {
	switch r.Level {
	case LevelPrimary:
		if r.Primary == nil || r.Secondary != nil {
			return NewValidationError("level", "primary result must carry exactly the primary variant")
		}
		return r.Primary.Validate()
	case LevelSecondary:
		if r.Secondary == nil || r.Primary != nil {
			return NewValidationError("level", "secondary result must carry exactly the secondary variant")
		}
		return r.Secondary.Validate()
	default:
		return NewValidationError("level", fmt.Sprintf("unknown metadata level %q", r.Level))
	}
}

// Summary renders the extracted fields as human-readable lines, one per
// field, in extraction order. Used for transcripts and progress reporting.
func (r *ExtractionResult) Summary() string {
	lines := append([]string{"# The extracted metadata:"}, r.FieldLines()...)
	return strings.Join(lines, "\n")
}

// FieldLines renders one " - description: value" line per field, in
// extraction order.
func (r *ExtractionResult) FieldLines() []string {
	fds := r.Level.FieldDescriptions()
	lines := make([]string, 0, len(fds))
	for _, fd := range fds {
		lines = append(lines, fmt.Sprintf(" - %s: %s", fd.Description, r.fieldValue(fd.Name)))
	}
	return lines
}

// fieldValue looks up one field's value by column name.
func (r *ExtractionResult) fieldValue(name string) string {
	switch r.Level {
	case LevelPrimary:
		if r.Primary == nil {
			return ""
		}
		switch name {
		case "is_illumina":
			return string(r.Primary.IsIllumina)
		case "is_single_cell":
			return string(r.Primary.IsSingleCell)
		case "is_paired_end":
			return string(r.Primary.IsPairedEnd)
		case "lib_prep":
			return string(r.Primary.LibPrep)
		case "tech_10x":
			return string(r.Primary.Tech10x)
		case "cell_prep":
			return string(r.Primary.CellPrep)
		}
	case LevelSecondary:
		if r.Secondary == nil {
			return ""
		}
		switch name {
		case "organism":
			return string(r.Secondary.Organism)
		case "tissue":
			return r.Secondary.Tissue
		case "tissue_ontology_term_id":
			return r.Secondary.TissueOntologyTermID
		case "disease":
			return r.Secondary.Disease
		case "perturbation":
			return r.Secondary.Perturbation
		case "cell_line":
			return r.Secondary.CellLine
		}
	}
	return ""
}

// JoinList serializes a list-valued answer into one comma-delimited string
// for storage and display.
func JoinList(values []string) string {
	return strings.Join(values, ",")
}
