package identity

import (
	"net/url"
	"regexp"
	"strings"
)

// Forge hosts accepted as strong identity signals. Order is the probe order.
var forgeHosts = []string{
	"github.com",
	"gitlab.com",
	"bitbucket.org",
}

// KeySubject is the view of a record the key deriver needs. Absent fields
// are empty strings or empty slices.
type KeySubject struct {
	RepoURL   string
	Name      string
	Namespace string
	Slug      string
	ID        string

	// PackageRegistries and PackageIdentifiers are parallel slices of the
	// record's installable packages.
	PackageRegistries  []string
	PackageIdentifiers []string
}

// DeriveKey computes the deduplication key for a raw record. It is total:
// every rule degrades to the next, terminating in the opaque id.
//
// The chain encodes a trust hierarchy: a repository is the strongest
// cross-source identity signal, then a declared name, then a
// globally-namespaced npm identifier, then the source-local slug, and as a
// last resort the raw id.
func DeriveKey(subject KeySubject) string {
	if repo := normalizeForgeURL(subject.RepoURL); repo != "" {
		return "repo:" + repo
	}

	if name := normalizeName(subject.Name); name != "" {
		return "name:" + name
	}

	for i, registry := range subject.PackageRegistries {
		reg := strings.ToLower(registry)
		if reg != "npm" && reg != "npmjs" {
			continue
		}
		if i < len(subject.PackageIdentifiers) && subject.PackageIdentifiers[i] != "" {
			return "npm:" + strings.ToLower(subject.PackageIdentifiers[i])
		}
	}

	if subject.Namespace != "" && subject.Slug != "" {
		return "slug:" + strings.ToLower(subject.Namespace+"/"+subject.Slug)
	}

	return "id:" + strings.ToLower(subject.ID)
}

// normalizeForgeURL extracts the case-folded "owner/repo" pair from a
// supported forge URL, or returns "" when the URL is absent, malformed or
// not a recognized forge.
func normalizeForgeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	raw = strings.TrimSuffix(raw, "/")
	raw = strings.TrimSuffix(raw, ".git")

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	host := strings.ToLower(u.Host)
	supported := false
	for _, forge := range forgeHosts {
		if host == forge || strings.HasSuffix(host, "."+forge) {
			supported = true
			break
		}
	}
	if !supported {
		return ""
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}

	return strings.ToLower(parts[0] + "/" + parts[1])
}

var (
	hyphenCollapseRe = regexp.MustCompile(`[\s/]+`)
	nonNameRuneRe    = regexp.MustCompile(`[^a-z0-9-]`)
	repeatedHyphenRe = regexp.MustCompile(`-{2,}`)
)

// normalizeName canonicalizes a display name: strip a leading "@", collapse
// whitespace and slashes to single hyphens, drop anything that is not
// alphanumeric or hyphen, collapse repeated hyphens and trim the ends.
func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "@")
	name = hyphenCollapseRe.ReplaceAllString(name, "-")
	name = nonNameRuneRe.ReplaceAllString(name, "")
	name = repeatedHyphenRe.ReplaceAllString(name, "-")
	return strings.Trim(name, "-")
}
