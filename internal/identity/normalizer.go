// Package identity computes canonical deduplication keys for catalog
// records: a domain-normalized key from a provider slug, and a derived
// identity key for raw-dump reconciliation.
package identity

import (
	"regexp"
	"strings"

	"github.com/compose-market/connector/internal/catalog"
)

// versionSuffixRe matches a trailing "-2" / "-v2" style version marker.
var versionSuffixRe = regexp.MustCompile(`-v?\d+$`)

// Normalizer maps provider-specific slugs to domain-normalized canonical
// keys so that logically-identical entries from different providers collide.
type Normalizer struct {
	tables *Tables
}

// NewNormalizer creates a Normalizer with the given policy tables.
// Passing nil uses the shipped defaults.
func NewNormalizer(tables *Tables) *Normalizer {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Normalizer{tables: tables}
}

// Normalize computes the canonical key for a slug contributed by origin.
//
// The result is deterministic and side-effect-free: lower-case and trim,
// strip one known prefix (the origin's own tag counts as a prefix), attempt
// one suffix strip against the already-prefix-stripped string, fold known
// synonyms, then drop a trailing version marker. An empty result is returned
// as-is; callers must tolerate empty canonical keys.
func (n *Normalizer) Normalize(slug string, origin catalog.Origin) string {
	key := strings.ToLower(strings.TrimSpace(slug))

	key = n.stripPrefix(key, origin)
	key = n.stripSuffix(key)

	for _, rule := range n.tables.Synonyms {
		if key == rule.Match {
			key = rule.Canonical
			break
		}
	}

	return versionSuffixRe.ReplaceAllString(key, "")
}

// stripPrefix removes the first matching prefix affix. The origin tag itself
// is tried first so that e.g. "eliza-" entries from the eliza source fold
// regardless of the configured affix list.
func (n *Normalizer) stripPrefix(key string, origin catalog.Origin) string {
	if origin != "" {
		if rest, ok := strings.CutPrefix(key, string(origin)+"-"); ok {
			return rest
		}
	}
	for _, prefix := range n.tables.Prefixes {
		if rest, ok := strings.CutPrefix(key, prefix); ok {
			return rest
		}
	}
	return key
}

// stripSuffix removes the first matching suffix affix, using the suffix's
// own length.
func (n *Normalizer) stripSuffix(key string) string {
	for _, suffix := range n.tables.Suffixes {
		if rest, ok := strings.CutSuffix(key, suffix); ok {
			return rest
		}
	}
	return key
}

// Category classifies a record from its capability attributes, keywords and
// description using the ordered category vocabulary. The first matching
// keyword wins; records matching nothing get the default category.
func (n *Normalizer) Category(attributes, keywords []string, description string) string {
	haystack := strings.ToLower(strings.Join(attributes, " ") + " " +
		strings.Join(keywords, " ") + " " + description)

	for _, rule := range n.tables.Categories {
		for _, kw := range rule.Keywords {
			if strings.Contains(haystack, kw) {
				return rule.Name
			}
		}
	}
	return n.tables.DefaultCategory
}

// Tags derives search tags: name tokens (split on non-alphanumerics,
// tokens of three or more characters), vocabulary keywords found in the
// lower-cased description, and the namespace itself.
func (n *Normalizer) Tags(name, namespace, description string) []string {
	seen := make(map[string]struct{})
	var tags []string
	add := func(tag string) {
		tag = strings.ToLower(tag)
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	for _, token := range splitTokens(name) {
		if len(token) > 2 {
			add(token)
		}
	}

	descLower := strings.ToLower(description)
	for _, kw := range n.tables.TagVocabulary {
		if strings.Contains(descLower, kw) {
			add(kw)
		}
	}

	if namespace != "" {
		add(namespace)
	}

	return tags
}

// splitTokens splits a display name on every non-alphanumeric rune.
func splitTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !isAlnum(r)
	})
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
