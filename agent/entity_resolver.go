package agent

import (
	"regexp"
	"sort"
	"strings"

	"ledgerchat/dataset"
)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeText folds free text for tolerant matching: lower-case, collapse
// every non-alphanumeric run to a single space, trim.
func normalizeText(value string) string {
	return strings.TrimSpace(nonAlnumRe.ReplaceAllString(strings.ToLower(value), " "))
}

// vocabulary is a column's known values indexed by normalized form, keeping
// dataset order for deterministic tie-breaks.
type vocabulary struct {
	norms     []string
	originals map[string][]string
}

func buildVocabulary(allowed []string) *vocabulary {
	v := &vocabulary{originals: make(map[string][]string, len(allowed))}
	for _, value := range allowed {
		norm := normalizeText(value)
		if norm == "" {
			continue
		}
		if _, ok := v.originals[norm]; !ok {
			v.norms = append(v.norms, norm)
		}
		v.originals[norm] = append(v.originals[norm], value)
	}
	return v
}

// bestMatches resolves a raw value against the vocabulary: exact normalized
// match first, then bidirectional substring containment with shortest known
// value preferred.
func (v *vocabulary) bestMatches(rawValue string) []string {
	normValue := normalizeText(rawValue)
	if normValue == "" {
		return nil
	}
	if originals, ok := v.originals[normValue]; ok {
		return originals
	}

	var substringMatches []string
	seen := map[string]bool{}
	for _, allowedNorm := range v.norms {
		if strings.Contains(allowedNorm, normValue) || strings.Contains(normValue, allowedNorm) {
			for _, original := range v.originals[allowedNorm] {
				if !seen[original] {
					seen[original] = true
					substringMatches = append(substringMatches, original)
				}
			}
		}
	}
	if len(substringMatches) == 0 {
		return nil
	}
	sort.SliceStable(substringMatches, func(i, j int) bool {
		return len(substringMatches[i]) < len(substringMatches[j])
	})
	return substringMatches
}

// resolveRequestedValues maps extracted values to canonical dataset values.
// A compound multi-value request additionally tries the space-joined
// concatenation as a single mention; a hit supersedes partial resolutions
// that are substrings of it. Returns the deduplicated resolved values and
// the values that matched nothing.
func resolveRequestedValues(requestedValues []string, allowed []string) (resolved, unresolved []string) {
	if len(allowed) == 0 {
		return requestedValues, nil
	}
	vocab := buildVocabulary(allowed)

	for _, value := range requestedValues {
		rawValue := strings.TrimSpace(value)
		if rawValue == "" {
			continue
		}
		matches := vocab.bestMatches(rawValue)
		if len(matches) == 0 {
			unresolved = append(unresolved, rawValue)
			continue
		}
		resolved = append(resolved, matches[0])
	}

	if len(requestedValues) >= 2 {
		var trimmed []string
		for _, value := range requestedValues {
			if t := strings.TrimSpace(value); t != "" {
				trimmed = append(trimmed, t)
			}
		}
		joined := strings.Join(trimmed, " ")
		if joined != "" {
			if joinedMatches := vocab.bestMatches(joined); len(joinedMatches) > 0 {
				canonical := joinedMatches[0]
				canonicalNorm := normalizeText(canonical)
				if !containsString(resolved, canonical) {
					kept := resolved[:0]
					for _, item := range resolved {
						if normalizeText(item) != canonicalNorm {
							kept = append(kept, item)
						}
					}
					resolved = append(kept, canonical)
				}
				keptUnresolved := unresolved[:0]
				for _, item := range unresolved {
					if !strings.Contains(canonicalNorm, normalizeText(item)) {
						keptUnresolved = append(keptUnresolved, item)
					}
				}
				unresolved = keptUnresolved
			}
		}
	}

	var deduped []string
	seen := map[string]bool{}
	for _, item := range resolved {
		key := normalizeText(item)
		if key != "" && !seen[key] {
			seen[key] = true
			deduped = append(deduped, item)
		}
	}
	return deduped, unresolved
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

// isExplicitIdentifier reports whether an absent value looks like a genuine
// explicit identifier worth blocking the turn for. Vague short tokens are
// dropped silently instead.
func isExplicitIdentifier(value string) bool {
	normalized := normalizeText(value)
	if normalized == "" {
		return false
	}
	for _, r := range normalized {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	tokens := strings.Fields(normalized)
	if len(tokens) == 1 {
		return false
	}
	allShort := true
	for _, token := range tokens {
		if len(token) > 2 {
			allShort = false
			break
		}
	}
	return !allShort
}

// crossColumnLedgerRescue tries to reassign an absent ledger value into a
// sibling ledger column with exactly one exact normalized match. Ambiguity
// is never guessed.
func crossColumnLedgerRescue(sourceColumn, rawValue string, uniqueValues map[string][]string) (string, string, bool) {
	if !containsString(ledgerColumns, sourceColumn) {
		return "", "", false
	}
	normalizedRaw := normalizeText(rawValue)
	if normalizedRaw == "" {
		return "", "", false
	}

	type candidate struct{ column, value string }
	var candidates []candidate
	seen := map[[2]string]bool{}
	for _, column := range ledgerColumns {
		for _, allowed := range uniqueValues[column] {
			if normalizeText(allowed) != normalizedRaw {
				continue
			}
			key := [2]string{column, normalizeText(allowed)}
			if seen[key] {
				continue
			}
			seen[key] = true
			candidates = append(candidates, candidate{column: column, value: allowed})
		}
	}
	if len(candidates) != 1 {
		return "", "", false
	}
	return candidates[0].column, candidates[0].value, true
}

// appendUniqueNormalized appends value to values unless a normalized-equal
// entry already exists.
func appendUniqueNormalized(values []string, value string) []string {
	norm := normalizeText(value)
	for _, existing := range values {
		if normalizeText(existing) == norm {
			return values
		}
	}
	return append(values, value)
}

// missingRequestedValues resolves every identity-like column in place and
// returns the requested values that do not exist in the dataset vocabulary,
// after the cross-column ledger rescue and the explicit-identifier filter.
func missingRequestedValues(entities *ExtractedEntities, profile *dataset.Profile) map[string][]string {
	missing := map[string][]string{}
	for _, column := range missingCheckColumns {
		requested := entities.valuesFor(column)
		if len(requested) == 0 {
			continue
		}
		resolved, absent := resolveRequestedValues(requested, profile.UniqueValues[column])
		entities.setValuesFor(column, resolved)
		if len(absent) == 0 {
			continue
		}

		var rescuedAbsent []string
		for _, rawValue := range absent {
			destColumn, canonical, ok := crossColumnLedgerRescue(column, rawValue, profile.UniqueValues)
			if !ok {
				rescuedAbsent = append(rescuedAbsent, rawValue)
				continue
			}
			entities.setValuesFor(destColumn, appendUniqueNormalized(entities.valuesFor(destColumn), canonical))
		}
		absent = rescuedAbsent
		if len(absent) == 0 {
			continue
		}

		var explicitAbsent []string
		for _, item := range absent {
			if isExplicitIdentifier(item) {
				explicitAbsent = append(explicitAbsent, item)
			}
		}
		if len(explicitAbsent) > 0 {
			missing[column] = explicitAbsent
		}
	}
	return missing
}

// resolveLedgerRawMentions assigns raw ledger-like literals into canonical
// ledger columns when uniquely matched: exact normalized matches first, then
// substring containment. Anything ambiguous or unmatched stays unresolved.
func resolveLedgerRawMentions(entities *ExtractedEntities, profile *dataset.Profile) map[string][]string {
	if len(entities.LedgerRawMentions) == 0 {
		return nil
	}

	type candidate struct{ column, value string }
	dedupe := func(candidates []candidate) []candidate {
		var deduped []candidate
		seen := map[[2]string]bool{}
		for _, c := range candidates {
			key := [2]string{c.column, normalizeText(c.value)}
			if seen[key] {
				continue
			}
			seen[key] = true
			deduped = append(deduped, c)
		}
		return deduped
	}

	var unresolved []string
	for _, raw := range entities.LedgerRawMentions {
		rawValue := strings.TrimSpace(raw)
		if rawValue == "" {
			continue
		}
		rawNorm := normalizeText(rawValue)
		if rawNorm == "" {
			continue
		}

		var exact, substring []candidate
		for _, column := range ledgerColumns {
			for _, allowed := range profile.UniqueValues[column] {
				canonicalNorm := normalizeText(allowed)
				if canonicalNorm == "" {
					continue
				}
				switch {
				case canonicalNorm == rawNorm:
					exact = append(exact, candidate{column: column, value: allowed})
				case strings.Contains(canonicalNorm, rawNorm):
					substring = append(substring, candidate{column: column, value: allowed})
				}
			}
		}
		exact = dedupe(exact)
		substring = dedupe(substring)

		var chosen candidate
		switch {
		case len(exact) == 1:
			chosen = exact[0]
		case len(exact) > 1:
			unresolved = append(unresolved, rawValue)
			continue
		case len(substring) == 1:
			chosen = substring[0]
		default:
			unresolved = append(unresolved, rawValue)
			continue
		}

		entities.setValuesFor(chosen.column, appendUniqueNormalized(entities.valuesFor(chosen.column), chosen.value))
	}

	entities.LedgerRawMentions = unresolved
	if len(unresolved) > 0 {
		return map[string][]string{"ledger_raw_mentions": unresolved}
	}
	return nil
}

// definitionsIntentIsEligible reports whether a definitions classification
// is a pure profile-only question. Any concrete value anywhere disqualifies
// it.
func definitionsIntentIsEligible(entities *ExtractedEntities) bool {
	concrete := [][]string{
		entities.EntityName,
		entities.PropertyName,
		entities.TenantName,
		entities.LedgerType,
		entities.LedgerGroup,
		entities.LedgerCategory,
		entities.LedgerCode,
		entities.LedgerDescription,
		entities.LedgerRawMentions,
		entities.RequestTarget,
	}
	for _, values := range concrete {
		for _, item := range values {
			if strings.TrimSpace(item) != "" {
				return false
			}
		}
	}

	metric := strings.ToLower(strings.TrimSpace(entities.RequestedMetric))
	if metric != "" && metric != "unknown" {
		return false
	}
	if entities.Ranking.Mode != "" && entities.Ranking.Mode != "none" {
		return false
	}
	if entities.Ranking.TopK != nil {
		return false
	}
	if entities.TimeScope.Mode != "" && entities.TimeScope.Mode != "none" {
		return false
	}
	return !entities.NeedsClarification
}
