// Package catalog defines the unified in-memory record shape that every
// source is normalized into, and the deduplicated catalog built from it.
package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Origin identifies which data provider contributed a record.
type Origin string

const (
	// OriginInternal is the curated in-house server list
	OriginInternal Origin = "internal"

	// OriginRegistry is the upstream MCP registry API
	OriginRegistry Origin = "registry"

	// OriginGoat is the GOAT plugin list
	OriginGoat Origin = "goat"

	// OriginEliza is the Eliza plugin list
	OriginEliza Origin = "eliza"

	// OriginPulse is the external directory scrape
	OriginPulse Origin = "pulse"
)

// originPriority is the fixed total order over origins. Lower values win
// conflicts during reconciliation.
var originPriority = map[Origin]int{
	OriginInternal: 0,
	OriginRegistry: 1,
	OriginGoat:     2,
	OriginEliza:    3,
	OriginPulse:    4,
}

// unknownOriginPriority ranks origins missing from the table below every
// known origin so that unrecognized sources never win a merge.
const unknownOriginPriority = 100

// Priority returns the merge priority for the origin. Lower means higher
// priority.
func (o Origin) Priority() int {
	if p, ok := originPriority[o]; ok {
		return p
	}
	return unknownOriginPriority
}

// Known reports whether the origin is one of the configured data providers.
func (o Origin) Known() bool {
	_, ok := originPriority[o]
	return ok
}

// KnownOrigins returns all configured origins ordered by priority.
func KnownOrigins() []Origin {
	origins := make([]Origin, 0, len(originPriority))
	for o := range originPriority {
		origins = append(origins, o)
	}
	sort.Slice(origins, func(i, j int) bool {
		return origins[i].Priority() < origins[j].Priority()
	})
	return origins
}

// Tool describes a single tool exposed by a server. The input schema is kept
// as raw JSON so third-party-declared schemas survive re-export untouched.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// EnvVar is an environment variable declared by a package spawn definition.
type EnvVar struct {
	Name     string `json:"name"`
	Value    string `json:"value,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// Package is an installable distribution of a server.
type Package struct {
	RegistryType string   `json:"registryType"`
	Identifier   string   `json:"identifier"`
	Command      string   `json:"command,omitempty"`
	Args         []string `json:"args,omitempty"`
	Env          []EnvVar `json:"env,omitempty"`
}

// Remote is a hosted endpoint for a server.
type Remote struct {
	Transport string `json:"transport"`
	URL       string `json:"url"`
}

// UnifiedRecord is the canonical shape all sources are normalized into.
//
// Two records with the same CanonicalKey are assumed to denote the same
// real-world server and are merged into one during reconciliation.
type UnifiedRecord struct {
	RegistryID   string   `json:"registryId"`
	Origin       Origin   `json:"origin"`
	Sources      []Origin `json:"sources"`
	CanonicalKey string   `json:"canonicalKey"`

	Name        string   `json:"name"`
	Namespace   string   `json:"namespace,omitempty"`
	Slug        string   `json:"slug,omitempty"`
	Description string   `json:"description,omitempty"`
	Attributes  []string `json:"attributes,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Category    string   `json:"category,omitempty"`
	RepoURL     string   `json:"repoUrl,omitempty"`

	Packages []Package `json:"packages,omitempty"`
	Remotes  []Remote  `json:"remotes,omitempty"`
	Tools    []Tool    `json:"tools,omitempty"`

	ToolCount  int      `json:"toolCount"`
	Transport  string   `json:"transport,omitempty"`
	Available  bool     `json:"available"`
	Executable bool     `json:"executable"`
	MissingEnv []string `json:"missingEnv,omitempty"`

	// AlternateIDs holds origin-qualified ids of records folded into this
	// one during deduplication.
	AlternateIDs []string `json:"alternateIds,omitempty"`

	// Raw retains the source payload for lossless re-export.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// NewRegistryID builds the composite origin-qualified identifier that is
// unique within the catalog.
func NewRegistryID(origin Origin, localID string) string {
	return fmt.Sprintf("%s:%s", origin, localID)
}

// SortKey is the deterministic catalog ordering key.
func (r *UnifiedRecord) SortKey() string {
	return r.Namespace + "/" + r.Slug
}

// Catalog is the finished, deduplicated, sorted collection of records.
type Catalog struct {
	Records []UnifiedRecord `json:"servers"`
	BuiltAt time.Time       `json:"builtAt"`
}

// Stats summarizes the catalog for the aggregate metadata operation.
type Stats struct {
	TotalServers    int            `json:"totalServers"`
	ByOrigin        map[Origin]int `json:"byOrigin"`
	ByCategory      map[string]int `json:"byCategory"`
	ExecutableCount int            `json:"executableCount"`
	AvailableCount  int            `json:"availableCount"`
	// MergedCount is the number of records formed by merging two or more
	// sources.
	MergedCount int `json:"mergedCount"`
}

// ComputeStats walks the catalog once and aggregates counters.
func (c *Catalog) ComputeStats() *Stats {
	stats := &Stats{
		TotalServers: len(c.Records),
		ByOrigin:     make(map[Origin]int),
		ByCategory:   make(map[string]int),
	}

	for i := range c.Records {
		rec := &c.Records[i]
		for _, src := range rec.Sources {
			stats.ByOrigin[src]++
		}
		if rec.Category != "" {
			stats.ByCategory[rec.Category]++
		}
		if rec.Executable {
			stats.ExecutableCount++
		}
		if rec.Available {
			stats.AvailableCount++
		}
		if len(rec.Sources) >= 2 {
			stats.MergedCount++
		}
	}

	return stats
}
