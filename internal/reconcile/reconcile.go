// Package reconcile groups same-key records and merges each group into one
// canonical record using the fixed source-priority order and field-level
// merge rules.
package reconcile

import (
	"log/slog"
	"sort"

	"github.com/compose-market/connector/internal/catalog"
	"github.com/compose-market/connector/internal/identity"
)

// Reconcile deduplicates the input by canonical key.
//
// Groups of size one pass through unchanged. Larger groups are sorted by
// origin priority (stable, so first-seen wins equal-priority ties); the
// first member becomes the primary and every other member is folded into it
// in priority order. Reconcile never fails: malformed records simply behave
// as if their fields were empty.
func Reconcile(records []catalog.UnifiedRecord) []catalog.UnifiedRecord {
	return reconcileBy(records, func(rec *catalog.UnifiedRecord) string {
		return rec.CanonicalKey
	}, "")
}

// ReconcileByIdentity deduplicates the input by derived identity key. The
// offline compile pipeline runs it after the canonical-key pass to collapse
// records that point at the same repository or package even when their
// display names normalize to different canonical keys.
func ReconcileByIdentity(records []catalog.UnifiedRecord) []catalog.UnifiedRecord {
	return reconcileBy(records, func(rec *catalog.UnifiedRecord) string {
		return identity.DeriveKey(keySubject(rec))
	}, "id:")
}

// keySubject projects a record onto the fields the key deriver inspects.
func keySubject(rec *catalog.UnifiedRecord) identity.KeySubject {
	registries := make([]string, 0, len(rec.Packages))
	identifiers := make([]string, 0, len(rec.Packages))
	for _, pkg := range rec.Packages {
		registries = append(registries, pkg.RegistryType)
		identifiers = append(identifiers, pkg.Identifier)
	}

	return identity.KeySubject{
		RepoURL:            rec.RepoURL,
		Name:               rec.Name,
		Namespace:          rec.Namespace,
		Slug:               rec.Slug,
		ID:                 rec.RegistryID,
		PackageRegistries:  registries,
		PackageIdentifiers: identifiers,
	}
}

// reconcileBy groups records by keyOf and merges each group. degenerateKey
// is the key records without any identity signal collapse onto; collisions
// on it are logged because they merge unrelated records.
func reconcileBy(
	records []catalog.UnifiedRecord,
	keyOf func(*catalog.UnifiedRecord) string,
	degenerateKey string,
) []catalog.UnifiedRecord {
	groups := make(map[string][]catalog.UnifiedRecord)
	var order []string
	for _, rec := range records {
		key := keyOf(&rec)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}

	merged := 0
	emptyKeyCollisions := 0
	out := make([]catalog.UnifiedRecord, 0, len(order))
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			out = append(out, normalizeRecord(group[0]))
			continue
		}

		merged += len(group) - 1
		if key == degenerateKey {
			emptyKeyCollisions += len(group) - 1
		}
		out = append(out, mergeGroup(group))
	}

	if merged > 0 {
		slog.Info("Merged duplicate catalog records",
			"input_count", len(records),
			"output_count", len(out),
			"merged_count", merged)
	}
	if emptyKeyCollisions > 0 {
		slog.Warn("Records without any identity signal were collapsed together",
			"collapsed_count", emptyKeyCollisions)
	}

	return out
}

// mergeGroup merges a same-key group into a single record.
func mergeGroup(group []catalog.UnifiedRecord) catalog.UnifiedRecord {
	sort.SliceStable(group, func(i, j int) bool {
		return group[i].Origin.Priority() < group[j].Origin.Priority()
	})

	primary := group[0]
	for _, secondary := range group[1:] {
		mergeInto(&primary, &secondary)
	}

	return normalizeRecord(primary)
}

// mergeInto folds a secondary record into the primary. Set-valued fields
// take the union; description and tool lists use longer-wins; every other
// field is adopted only when the primary's value is absent.
func mergeInto(primary, secondary *catalog.UnifiedRecord) {
	primary.Sources = unionOrigins(primary.Sources, secondary.Sources)
	primary.Tags = unionStrings(primary.Tags, secondary.Tags)
	primary.Attributes = unionStrings(primary.Attributes, secondary.Attributes)

	primary.AlternateIDs = appendUnique(primary.AlternateIDs, secondary.RegistryID)

	if len(secondary.Description) > len(primary.Description) {
		primary.Description = secondary.Description
	}
	if primary.RepoURL == "" {
		primary.RepoURL = secondary.RepoURL
	}
	if len(secondary.Tools) > len(primary.Tools) {
		primary.Tools = secondary.Tools
	}

	if primary.Name == "" {
		primary.Name = secondary.Name
	}
	if primary.Namespace == "" {
		primary.Namespace = secondary.Namespace
	}
	if primary.Slug == "" {
		primary.Slug = secondary.Slug
	}
	if primary.Category == "" {
		primary.Category = secondary.Category
	}
	if primary.Transport == "" {
		primary.Transport = secondary.Transport
	}
	if len(primary.Packages) == 0 {
		primary.Packages = secondary.Packages
	}
	if len(primary.Remotes) == 0 {
		primary.Remotes = secondary.Remotes
	}
	if len(primary.MissingEnv) == 0 {
		primary.MissingEnv = secondary.MissingEnv
	}
	if len(primary.Raw) == 0 {
		primary.Raw = secondary.Raw
	}

	primary.Available = primary.Available || secondary.Available
	primary.Executable = primary.Executable || secondary.Executable
}

// normalizeRecord enforces the post-merge invariants every emitted record
// carries: a non-empty sources set and a tool count matching the tool list.
func normalizeRecord(rec catalog.UnifiedRecord) catalog.UnifiedRecord {
	if len(rec.Sources) == 0 {
		rec.Sources = []catalog.Origin{rec.Origin}
	}
	rec.ToolCount = len(rec.Tools)
	return rec
}

// SortCatalog orders records by namespace/slug for deterministic output.
func SortCatalog(records []catalog.UnifiedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SortKey() < records[j].SortKey()
	})
}

// appendUnique appends s preserving insertion order, skipping duplicates.
func appendUnique(in []string, s string) []string {
	for _, existing := range in {
		if existing == s {
			return in
		}
	}
	return append(in, s)
}

func unionStrings(a, b []string) []string {
	return dedupeStrings(append(append([]string{}, a...), b...))
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func unionOrigins(a, b []catalog.Origin) []catalog.Origin {
	seen := make(map[catalog.Origin]struct{}, len(a)+len(b))
	out := make([]catalog.Origin, 0, len(a)+len(b))
	for _, o := range append(append([]catalog.Origin{}, a...), b...) {
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority() != out[j].Priority() {
			return out[i].Priority() < out[j].Priority()
		}
		return out[i] < out[j]
	})
	return out
}
