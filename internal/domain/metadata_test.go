package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateField(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{
			name:     "under cap unchanged",
			input:    "cortex",
			max:      80,
			expected: "cortex",
		},
		{
			name:     "exactly at cap unchanged",
			input:    strings.Repeat("a", 80),
			max:      80,
			expected: strings.Repeat("a", 80),
		},
		{
			name:     "over cap gets ellipsis",
			input:    strings.Repeat("a", 101),
			max:      100,
			expected: strings.Repeat("a", 97) + "...",
		},
		{
			name:     "tissue cap at 80",
			input:    strings.Repeat("b", 200),
			max:      80,
			expected: strings.Repeat("b", 77) + "...",
		},
		{
			name:     "empty string",
			input:    "",
			max:      100,
			expected: "",
		},
		{
			name:     "multibyte runes counted as characters",
			input:    strings.Repeat("é", 90),
			max:      80,
			expected: strings.Repeat("é", 77) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TruncateField(tt.input, tt.max)
			assert.Equal(t, tt.expected, result)
			assert.LessOrEqual(t, len([]rune(result)), tt.max)
		})
	}
}

func TestSecondaryMetadata_Truncate(t *testing.T) {
	m := &SecondaryMetadata{
		Organism:     OrganismHuman,
		Tissue:       strings.Repeat("t", 150),
		Disease:      strings.Repeat("d", 150),
		Perturbation: strings.Repeat("p", 150),
		CellLine:     strings.Repeat("c", 150),
	}

	m.Truncate()

	assert.Len(t, m.Tissue, MaxTissueLen)
	assert.Len(t, m.Disease, MaxFreeTextLen)
	assert.Len(t, m.Perturbation, MaxFreeTextLen)
	assert.Len(t, m.CellLine, MaxFreeTextLen)
	assert.True(t, strings.HasSuffix(m.Tissue, "..."))
	assert.True(t, strings.HasSuffix(m.Disease, "..."))
}

func TestCompletenessClassification(t *testing.T) {
	t.Run("not_applicable is always complete", func(t *testing.T) {
		assert.True(t, LibPrepNotApplicable.Complete())
		assert.True(t, Tech10xNotApplicable.Complete())
		assert.True(t, CellPrepNotApplicable.Complete())
	})

	t.Run("unsure and other are always incomplete", func(t *testing.T) {
		assert.False(t, TriStateUnsure.Complete())
		assert.False(t, LibPrepOther.Complete())
		assert.False(t, Tech10xOther.Complete())
		assert.False(t, CellPrepUnsure.Complete())
		assert.False(t, OrganismOther.Complete())
	})

	t.Run("resolved values are complete", func(t *testing.T) {
		assert.True(t, TriStateYes.Complete())
		assert.True(t, TriStateNo.Complete())
		assert.True(t, LibPrep10xGenomics.Complete())
		assert.True(t, Tech10x5PrimeGEX.Complete())
		assert.True(t, CellPrepSingleCell.Complete())
		assert.True(t, OrganismMouse.Complete())
	})
}

func TestPrimaryMetadata_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		libPrep  LibPrep
		tech10x  Tech10x
		expected Tech10x
	}{
		{
			name:     "non-10x prep forces not_applicable",
			libPrep:  LibPrepSmartSeq2,
			tech10x:  Tech10x3PrimeGEX,
			expected: Tech10xNotApplicable,
		},
		{
			name:     "10x prep keeps oracle value",
			libPrep:  LibPrep10xGenomics,
			tech10x:  Tech10x5PrimeGEX,
			expected: Tech10x5PrimeGEX,
		},
		{
			name:     "other prep forces not_applicable even over unsure tech",
			libPrep:  LibPrepOther,
			tech10x:  Tech10xOther,
			expected: Tech10xNotApplicable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &PrimaryMetadata{
				IsIllumina:   TriStateYes,
				IsSingleCell: TriStateYes,
				IsPairedEnd:  TriStateYes,
				LibPrep:      tt.libPrep,
				Tech10x:      tt.tech10x,
				CellPrep:     CellPrepSingleCell,
			}
			m.Normalize()
			assert.Equal(t, tt.expected, m.Tech10x)
		})
	}
}

func TestPrimaryMetadata_IncompleteFields(t *testing.T) {
	t.Run("fully resolved metadata has no incomplete fields", func(t *testing.T) {
		m := &PrimaryMetadata{
			IsIllumina:   TriStateYes,
			IsSingleCell: TriStateYes,
			IsPairedEnd:  TriStateNo,
			LibPrep:      LibPrep10xGenomics,
			Tech10x:      Tech10x3PrimeGEX,
			CellPrep:     CellPrepSingleNucleus,
		}
		assert.Empty(t, m.IncompleteFields())
	})

	t.Run("unresolved fields are reported by column name", func(t *testing.T) {
		m := &PrimaryMetadata{
			IsIllumina:   TriStateUnsure,
			IsSingleCell: TriStateYes,
			IsPairedEnd:  TriStateYes,
			LibPrep:      LibPrepOther,
			Tech10x:      Tech10xNotApplicable,
			CellPrep:     CellPrepUnsure,
		}
		assert.Equal(t, []string{"is_illumina", "lib_prep", "cell_prep"}, m.IncompleteFields())
	})
}

func TestPrimaryMetadata_Validate(t *testing.T) {
	valid := PrimaryMetadata{
		IsIllumina:   TriStateYes,
		IsSingleCell: TriStateNo,
		IsPairedEnd:  TriStateUnsure,
		LibPrep:      LibPrepDropSeq,
		Tech10x:      Tech10xNotApplicable,
		CellPrep:     CellPrepNotApplicable,
	}
	require.NoError(t, valid.Validate())

	t.Run("rejects out-of-vocabulary values", func(t *testing.T) {
		m := valid
		m.LibPrep = LibPrep("SMART-SEQ-9000")
		err := m.Validate()
		require.Error(t, err)

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "lib_prep", validationErr.Field)
	})
}

func TestExtractionResult_Validate(t *testing.T) {
	primary := &PrimaryMetadata{
		IsIllumina:   TriStateYes,
		IsSingleCell: TriStateYes,
		IsPairedEnd:  TriStateYes,
		LibPrep:      LibPrep10xGenomics,
		Tech10x:      Tech10x5PrimeGEX,
		CellPrep:     CellPrepSingleCell,
	}
	secondary := &SecondaryMetadata{Organism: OrganismHuman, Tissue: "blood"}

	tests := []struct {
		name    string
		result  ExtractionResult
		wantErr bool
	}{
		{
			name:   "primary variant matches primary level",
			result: ExtractionResult{Level: LevelPrimary, Primary: primary},
		},
		{
			name:   "secondary variant matches secondary level",
			result: ExtractionResult{Level: LevelSecondary, Secondary: secondary},
		},
		{
			name:    "primary level with missing variant",
			result:  ExtractionResult{Level: LevelPrimary},
			wantErr: true,
		},
		{
			name:    "primary level with both variants",
			result:  ExtractionResult{Level: LevelPrimary, Primary: primary, Secondary: secondary},
			wantErr: true,
		},
		{
			name:    "unknown level",
			result:  ExtractionResult{Level: MetadataLevel("tertiary"), Primary: primary},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExtractionResult_Summary(t *testing.T) {
	r := &ExtractionResult{
		Level: LevelPrimary,
		Primary: &PrimaryMetadata{
			IsIllumina:   TriStateYes,
			IsSingleCell: TriStateYes,
			IsPairedEnd:  TriStateUnsure,
			LibPrep:      LibPrep10xGenomics,
			Tech10x:      Tech10x5PrimeGEX,
			CellPrep:     CellPrepSingleCell,
		},
	}

	summary := r.Summary()

	assert.Contains(t, summary, "# The extracted metadata:")
	assert.Contains(t, summary, "Is the dataset Illumina sequence data?: yes")
	assert.Contains(t, summary, "Which scRNA-seq library preparation technology?: 10x_Genomics")
	assert.Contains(t, summary, "If 10X Genomics, which particular 10X technology?: 5_prime_gex")
}

func TestMetadataLevel(t *testing.T) {
	t.Run("attempt budgets", func(t *testing.T) {
		assert.Equal(t, 2, LevelPrimary.MaxAttempts())
		assert.Equal(t, 1, LevelSecondary.MaxAttempts())
	})

	t.Run("field descriptions follow the level", func(t *testing.T) {
		primaryNames := make([]string, 0)
		for _, fd := range LevelPrimary.FieldDescriptions() {
			primaryNames = append(primaryNames, fd.Name)
		}
		assert.Equal(t, []string{"is_illumina", "is_single_cell", "is_paired_end", "lib_prep", "tech_10x", "cell_prep"}, primaryNames)

		secondaryNames := make([]string, 0)
		for _, fd := range LevelSecondary.FieldDescriptions() {
			secondaryNames = append(secondaryNames, fd.Name)
		}
		assert.Contains(t, secondaryNames, "organism")
		assert.Contains(t, secondaryNames, "tissue")
		assert.Contains(t, secondaryNames, "cell_line")
	})
}

func TestVocabularyValues(t *testing.T) {
	t.Run("value lists cover the closed sets", func(t *testing.T) {
		assert.Len(t, TriStateValues(), 3)
		assert.Len(t, LibPrepValues(), 18)
		assert.Len(t, Tech10xValues(), 12)
		assert.Len(t, CellPrepValues(), 4)
		assert.Len(t, OrganismValues(), 27)
	})

	t.Run("every listed value validates", func(t *testing.T) {
		for _, v := range LibPrepValues() {
			assert.True(t, v.Valid(), "lib_prep %q", v)
		}
		for _, v := range Tech10xValues() {
			assert.True(t, v.Valid(), "tech_10x %q", v)
		}
		for _, v := range OrganismValues() {
			assert.True(t, v.Valid(), "organism %q", v)
		}
	})

	t.Run("out-of-vocabulary values are rejected", func(t *testing.T) {
		assert.False(t, LibPrep("10X").Valid())
		assert.False(t, Tech10x("3prime").Valid())
		assert.False(t, Organism("Homo Sapiens").Valid())
	})
}

func TestExtractionResult_FieldLines(t *testing.T) {
	r := &ExtractionResult{
		Level: LevelSecondary,
		Secondary: &SecondaryMetadata{
			Organism: OrganismHuman,
			Tissue:   "bone marrow",
			Disease:  "none reported",
		},
	}

	lines := r.FieldLines()
	require.Len(t, lines, len(LevelSecondary.FieldDescriptions()))
	assert.Equal(t, " - Which organism was sequenced?: Homo sapiens", lines[0])
	assert.Contains(t, lines[1], "bone marrow")
}

func TestJoinList(t *testing.T) {
	assert.Equal(t, "", JoinList(nil))
	assert.Equal(t, "SRR1", JoinList([]string{"SRR1"}))
	assert.Equal(t, "SRR1,SRR2", JoinList([]string{"SRR1", "SRR2"}))
}
