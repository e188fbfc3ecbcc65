package service

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/keek-conecta/escuta-api/internal/models"
)

// Dimension filters arrive under historical alias names. Aliases merge in a
// fixed order so repeated values keep their first position.

// mergeFilterValues concatenates alias slices, trims entries, drops empties
// and deduplicates keeping first occurrence. Returns nil when nothing is left.
func mergeFilterValues(groups ...[]string) []string {
	var merged []string
	seen := make(map[string]struct{})
	for _, group := range groups {
		for _, raw := range group {
			value := strings.TrimSpace(raw)
			if value == "" {
				continue
			}
			if _, ok := seen[value]; ok {
				continue
			}
			seen[value] = struct{}{}
			merged = append(merged, value)
		}
	}
	return merged
}

// normalizeFieldFilters collapses the aliased input into one canonical filter
// set per dimension.
func normalizeFieldFilters(in models.FieldFilterInput) models.FieldFilters {
	return models.FieldFilters{
		Temas:        mergeFilterValues(in.Temas, in.Tema),
		Tipos:        mergeFilterValues(in.TipoOpiniao, in.Tipos, in.Tipo),
		Generos:      mergeFilterValues(in.Genero, in.Generos),
		Bairros:      mergeFilterValues(in.Bairro, in.Bairros),
		FaixaEtaria:  mergeFilterValues(in.FaixaEtaria, in.FaixasEtarias),
		TextoOpiniao: mergeFilterValues(in.TextoOpiniao, in.Texto),
		Campanhas:    mergeFilterValues(in.Campanhas, in.Campanha),
	}
}

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeText lowercases and strips accents so "Não Informado" and
// "nao informado" compare equal.
func normalizeText(s string) string {
	stripped, _, err := transform.String(accentStripper, s)
	if err != nil {
		stripped = s
	}
	return strings.ToLower(strings.TrimSpace(stripped))
}

// isUnknownLabel reports whether the value is the "not informed" sentinel.
func isUnknownLabel(value string) bool {
	return normalizeText(value) == "nao informado"
}

// splitUnknown partitions values into concrete ones and the unknown sentinel.
func splitUnknown(values []string) (concrete []string, unknown bool) {
	for _, value := range values {
		if isUnknownLabel(value) {
			unknown = true
			continue
		}
		concrete = append(concrete, value)
	}
	return concrete, unknown
}

// ageRange is an inclusive age interval.
type ageRange struct {
	min int
	max int
}

// parseAgeLabel understands "Ate N", "N+", "N-M" and "N a M". Reversed bounds
// swap. Unparseable labels report ok=false and are skipped by callers.
func parseAgeLabel(label string) (ageRange, bool) {
	text := normalizeText(label)
	text = strings.TrimSpace(text)
	if text == "" {
		return ageRange{}, false
	}

	// "Ate 18" and the squeezed "Até18" both mean an upper bound.
	if rest, found := strings.CutPrefix(text, "ate"); found {
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil || n < 0 {
			return ageRange{}, false
		}
		return ageRange{min: 0, max: n}, true
	}

	if rest, found := strings.CutSuffix(text, "+"); found {
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil || n < 0 {
			return ageRange{}, false
		}
		return ageRange{min: n, max: models.MaxPlausibleAge}, true
	}

	var parts []string
	switch {
	case strings.Contains(text, " a "):
		parts = strings.SplitN(text, " a ", 2)
	case strings.Contains(text, "-"):
		parts = strings.SplitN(text, "-", 2)
	default:
		return ageRange{}, false
	}

	lo, errLo := strconv.Atoi(strings.TrimSpace(parts[0]))
	hi, errHi := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errLo != nil || errHi != nil || lo < 0 || hi < 0 {
		return ageRange{}, false
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return ageRange{min: lo, max: hi}, true
}

// birthYearsForLabels expands age range labels into the matching birth years
// relative to the reference year. Duplicate years collapse; order follows the
// first label producing each year, youngest age first.
func birthYearsForLabels(labels []string, referenceYear int) []string {
	var years []string
	seen := make(map[int]struct{})
	for _, label := range labels {
		rng, ok := parseAgeLabel(label)
		if !ok {
			continue
		}
		if rng.max > models.MaxPlausibleAge {
			rng.max = models.MaxPlausibleAge
		}
		for age := rng.min; age <= rng.max; age++ {
			year := referenceYear - age
			if _, dup := seen[year]; dup {
				continue
			}
			seen[year] = struct{}{}
			years = append(years, strconv.Itoa(year))
		}
	}
	return years
}

// Canonical answer field names of the civic listening form.
const (
	fieldTheme        = "opiniao"
	fieldOpinionType  = "tipo_opiniao"
	fieldGender       = "genero"
	fieldNeighborhood = "bairro"
	fieldCampaign     = "campanha"
	fieldOpinionText  = "texto_opiniao"
	fieldBirthYear    = "ano_nascimento"
)

// buildPredicates resolves canonical filters into per-answer predicates. Age
// labels expand into birth years against the reference date's year.
func buildPredicates(filters models.FieldFilters, reference time.Time) []models.FieldPredicate {
	var predicates []models.FieldPredicate

	add := func(fieldName string, values []string) {
		if len(values) == 0 {
			return
		}
		concrete, unknown := splitUnknown(values)
		if len(concrete) == 0 && !unknown {
			return
		}
		predicates = append(predicates, models.FieldPredicate{
			FieldName:      fieldName,
			Values:         concrete,
			IncludeUnknown: unknown,
		})
	}

	add(fieldTheme, filters.Temas)
	add(fieldOpinionType, filters.Tipos)
	add(fieldGender, filters.Generos)
	add(fieldNeighborhood, filters.Bairros)
	add(fieldCampaign, filters.Campanhas)

	if len(filters.FaixaEtaria) > 0 {
		concrete, unknown := splitUnknown(filters.FaixaEtaria)
		years := birthYearsForLabels(concrete, reference.UTC().Year())
		if len(years) > 0 || unknown {
			predicates = append(predicates, models.FieldPredicate{
				FieldName:      fieldBirthYear,
				Values:         years,
				IncludeUnknown: unknown,
			})
		}
	}

	// Free-text terms go into one predicate so a response matching any of
	// them passes; separate predicates would demand all terms at once.
	if len(filters.TextoOpiniao) > 0 {
		predicates = append(predicates, models.FieldPredicate{
			FieldName: fieldOpinionText,
			Values:    filters.TextoOpiniao,
			Substring: true,
		})
	}

	return predicates
}
