package sources

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/compose-market/connector/internal/catalog"
	"github.com/compose-market/connector/internal/identity"
)

// serverDumpEnvelope is the registry-style dump shape. Individual records
// are kept raw so the original payload survives into the unified record.
type serverDumpEnvelope struct {
	SourceTag string            `json:"source_tag"`
	UpdatedAt string            `json:"updatedAt"`
	Count     int               `json:"count"`
	Servers   []json.RawMessage `json:"servers"`
}

// RawServerRecord is the per-record schema of a server dump. All fields are
// optional; the adapter derives what it can and the identity fallback chain
// absorbs the rest.
type RawServerRecord struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Namespace   string       `json:"namespace"`
	Slug        string       `json:"slug"`
	Description string       `json:"description"`
	Attributes  []string     `json:"attributes"`
	Repository  string       `json:"repository"`
	Packages    []RawPackage `json:"packages"`
	Remotes     []RawRemote  `json:"remotes"`
	Tools       []RawTool    `json:"tools"`
	Source      string       `json:"source"`
}

// RawPackage is an installable package declared by a server record.
type RawPackage struct {
	RegistryType string      `json:"registryType"`
	Identifier   string      `json:"identifier"`
	Command      string      `json:"command"`
	Args         []string    `json:"args"`
	Env          []RawEnvVar `json:"env"`
}

// RawEnvVar is an environment variable declared by a package.
type RawEnvVar struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Required bool   `json:"required"`
}

// RawRemote is a hosted endpoint declared by a server record.
type RawRemote struct {
	TransportType string `json:"transportType"`
	URL           string `json:"url"`
}

// RawTool is a tool descriptor declared by a server record.
type RawTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// metaTagPaths are the nested locations provider metadata hides tags in.
// Probed with gjson because the meta shape varies per provider.
var metaTagPaths = []string{
	"meta.tags",
	"_meta.tags",
	"_meta.publisherProvided.tags",
}

// AdaptServers converts a validated server dump into unified records.
// Malformed individual records degrade to records with empty fields; they
// are never dropped and never abort the adaptation.
func AdaptServers(
	data []byte,
	origin catalog.Origin,
	normalizer *identity.Normalizer,
) ([]catalog.UnifiedRecord, error) {
	var envelope serverDumpEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse server dump: %w", err)
	}

	records := make([]catalog.UnifiedRecord, 0, len(envelope.Servers))
	for _, raw := range envelope.Servers {
		var rec RawServerRecord
		// Unmarshal errors leave rec zero-valued, which the fallback
		// rules below handle.
		_ = json.Unmarshal(raw, &rec)

		records = append(records, adaptServerRecord(raw, &rec, origin, normalizer))
	}

	return records, nil
}

func adaptServerRecord(
	raw json.RawMessage,
	rec *RawServerRecord,
	origin catalog.Origin,
	normalizer *identity.Normalizer,
) catalog.UnifiedRecord {
	slug := rec.Slug
	if slug == "" {
		slug = Slugify(rec.Name)
	}

	localID := rec.ID
	if localID == "" {
		localID = slug
	}

	metaTags := extractMetaTags(raw)
	tags := normalizer.Tags(rec.Name, rec.Namespace, rec.Description)
	tags = mergeTags(tags, metaTags)

	missingEnv := missingRequiredEnv(rec.Packages)
	transport := deriveTransport(rec)

	unified := catalog.UnifiedRecord{
		RegistryID:   catalog.NewRegistryID(origin, localID),
		Origin:       origin,
		Sources:      []catalog.Origin{origin},
		CanonicalKey: normalizer.Normalize(slug, origin),
		Name:         rec.Name,
		Namespace:    rec.Namespace,
		Slug:         slug,
		Description:  rec.Description,
		Attributes:   rec.Attributes,
		Tags:         tags,
		Category:     normalizer.Category(rec.Attributes, metaTags, rec.Description),
		RepoURL:      rec.Repository,
		Packages:     adaptPackages(rec.Packages),
		Remotes:      adaptRemotes(rec.Remotes),
		Tools:        adaptTools(rec.Tools),
		Transport:    transport,
		Available:    len(rec.Remotes) > 0 || len(rec.Packages) > 0,
		Executable:   hasSpawnCommand(rec.Packages) && len(missingEnv) == 0,
		MissingEnv:   missingEnv,
		Raw:          raw,
	}
	unified.ToolCount = len(unified.Tools)

	return unified
}

// deriveTransport picks the record's transport: the first remote endpoint's
// transport type when remotes exist, stdio when only packages exist.
func deriveTransport(rec *RawServerRecord) string {
	if len(rec.Remotes) > 0 {
		if t := rec.Remotes[0].TransportType; t != "" {
			return t
		}
		return "http"
	}
	if len(rec.Packages) > 0 {
		return "stdio"
	}
	return ""
}

// missingRequiredEnv lists required environment variables without values
// across all packages.
func missingRequiredEnv(packages []RawPackage) []string {
	var missing []string
	seen := make(map[string]struct{})
	for _, pkg := range packages {
		for _, env := range pkg.Env {
			if !env.Required || env.Value != "" || env.Name == "" {
				continue
			}
			if _, ok := seen[env.Name]; ok {
				continue
			}
			seen[env.Name] = struct{}{}
			missing = append(missing, env.Name)
		}
	}
	return missing
}

func hasSpawnCommand(packages []RawPackage) bool {
	for _, pkg := range packages {
		if pkg.Command != "" {
			return true
		}
	}
	return false
}

// extractMetaTags probes the nested provider metadata for tag lists.
func extractMetaTags(raw json.RawMessage) []string {
	var tags []string
	for _, path := range metaTagPaths {
		result := gjson.GetBytes(raw, path)
		if !result.IsArray() {
			continue
		}
		for _, item := range result.Array() {
			if item.Type == gjson.String && item.Str != "" {
				tags = append(tags, strings.ToLower(item.Str))
			}
		}
	}
	return tags
}

func mergeTags(tags, extra []string) []string {
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		seen[t] = struct{}{}
	}
	for _, t := range extra {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}

func adaptPackages(in []RawPackage) []catalog.Package {
	if len(in) == 0 {
		return nil
	}
	out := make([]catalog.Package, 0, len(in))
	for _, pkg := range in {
		env := make([]catalog.EnvVar, 0, len(pkg.Env))
		for _, e := range pkg.Env {
			env = append(env, catalog.EnvVar{Name: e.Name, Value: e.Value, Required: e.Required})
		}
		if len(env) == 0 {
			env = nil
		}
		out = append(out, catalog.Package{
			RegistryType: pkg.RegistryType,
			Identifier:   pkg.Identifier,
			Command:      pkg.Command,
			Args:         pkg.Args,
			Env:          env,
		})
	}
	return out
}

func adaptRemotes(in []RawRemote) []catalog.Remote {
	if len(in) == 0 {
		return nil
	}
	out := make([]catalog.Remote, 0, len(in))
	for _, r := range in {
		out = append(out, catalog.Remote{Transport: r.TransportType, URL: r.URL})
	}
	return out
}

func adaptTools(in []RawTool) []catalog.Tool {
	if len(in) == 0 {
		return nil
	}
	out := make([]catalog.Tool, 0, len(in))
	for _, t := range in {
		out = append(out, catalog.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out
}

var slugifyRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a display name into a hyphenated slug.
func Slugify(name string) string {
	slug := slugifyRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(slug, "-")
}
