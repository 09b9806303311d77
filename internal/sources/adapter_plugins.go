package sources

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/compose-market/connector/internal/catalog"
	"github.com/compose-market/connector/internal/identity"
)

// pluginListEnvelope is the plugin-style dump shape.
type pluginListEnvelope struct {
	Plugins []json.RawMessage `json:"plugins"`
}

// RawPlugin is the per-record schema of a plugin list.
type RawPlugin struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Namespace   string   `json:"namespace"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Version     string   `json:"version"`
	Repository  string   `json:"repository"`
	Homepage    string   `json:"homepage"`
	Source      string   `json:"source"`
}

// executablePlugins is the fixed allow-list of execution-capable plugin ids
// per origin. Plugin lists carry no spawn metadata, so executability is a
// membership test rather than a derivation.
var executablePlugins = map[catalog.Origin]map[string]bool{
	catalog.OriginGoat: {
		"goat-erc20":      true,
		"goat-coingecko":  true,
		"goat-uniswap":    true,
		"goat-polymarket": true,
	},
	catalog.OriginEliza: {
		"eliza-twitter":  true,
		"eliza-discord":  true,
		"eliza-telegram": true,
	},
}

// AdaptPlugins converts a validated plugin list into unified records.
func AdaptPlugins(
	data []byte,
	origin catalog.Origin,
	normalizer *identity.Normalizer,
) ([]catalog.UnifiedRecord, error) {
	var envelope pluginListEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse plugin list: %w", err)
	}

	allowList := executablePlugins[origin]

	records := make([]catalog.UnifiedRecord, 0, len(envelope.Plugins))
	for _, raw := range envelope.Plugins {
		var plugin RawPlugin
		_ = json.Unmarshal(raw, &plugin)

		records = append(records, adaptPlugin(raw, &plugin, origin, normalizer, allowList))
	}

	return records, nil
}

func adaptPlugin(
	raw json.RawMessage,
	plugin *RawPlugin,
	origin catalog.Origin,
	normalizer *identity.Normalizer,
	allowList map[string]bool,
) catalog.UnifiedRecord {
	slug := plugin.Slug
	if slug == "" {
		slug = Slugify(plugin.Name)
	}

	localID := plugin.ID
	if localID == "" {
		localID = slug
	}

	tags := normalizer.Tags(plugin.Name, plugin.Namespace, plugin.Description)
	tags = mergeTags(tags, lowercaseAll(plugin.Keywords))

	executable := allowList[plugin.ID] || allowList[slug]

	unified := catalog.UnifiedRecord{
		RegistryID:   catalog.NewRegistryID(origin, localID),
		Origin:       origin,
		Sources:      []catalog.Origin{origin},
		CanonicalKey: normalizer.Normalize(slug, origin),
		Name:         plugin.Name,
		Namespace:    plugin.Namespace,
		Slug:         slug,
		Description:  plugin.Description,
		Tags:         tags,
		Category:     normalizer.Category(nil, plugin.Keywords, plugin.Description),
		RepoURL:      plugin.Repository,
		Transport:    "stdio",
		Available:    executable,
		Executable:   executable,
		Raw:          raw,
	}

	return unified
}

func lowercaseAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}
