package trigger

import "strings"

// Punctuation stripped from token boundaries during normalization. Interior
// punctuation (don't, dl-sync) survives.
const boundaryPunct = ".,!?;:\"'()[]{}<>"

// NormalizeText case-folds, collapses whitespace and newlines, and strips the
// fixed punctuation set from word boundaries.
func NormalizeText(raw string) string {
	lowered := strings.ToLower(raw)
	fields := strings.Fields(lowered)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, boundaryPunct)
		if f == "" {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// Tokenize splits normalized text into its ordered token array.
func Tokenize(normalized string) []string {
	return strings.Fields(normalized)
}

// WordSet builds the de-duplicated token set used for word-set rule matching.
func WordSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// StripSelfMention removes the runtime's own identity from the start of
// normalized text: either the full display name as a word prefix, a leading
// prefix of the display name's words, or the runtime address (full or local
// part) as the first token. Text that does not start with the identity is
// returned unchanged.
func StripSelfMention(normalized, selfEmail, selfDisplay string) string {
	tokens := Tokenize(normalized)
	if len(tokens) == 0 {
		return normalized
	}

	nameWords := Tokenize(NormalizeText(selfDisplay))
	if n := matchNamePrefix(tokens, nameWords); n > 0 {
		return strings.Join(tokens[n:], " ")
	}

	email := strings.ToLower(strings.TrimSpace(selfEmail))
	local := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		local = email[:i]
	}
	if email != "" && (tokens[0] == email || tokens[0] == local) {
		return strings.Join(tokens[1:], " ")
	}
	return normalized
}

// matchNamePrefix returns how many leading tokens are consumed by the display
// name. The full name is preferred; a single first-word match also counts so
// "helper do this" addresses a bot named "Helper Bot".
func matchNamePrefix(tokens, nameWords []string) int {
	if len(nameWords) == 0 {
		return 0
	}
	if len(tokens) >= len(nameWords) {
		matched := true
		for i, w := range nameWords {
			if tokens[i] != w {
				matched = false
				break
			}
		}
		if matched {
			return len(nameWords)
		}
	}
	if tokens[0] == nameWords[0] {
		return 1
	}
	return 0
}
