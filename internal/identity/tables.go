package identity

// Tables holds the string-normalization policy as data rather than control
// flow, so the policy can be unit-tested and extended without touching the
// normalizer itself.
//
// Order matters everywhere in this file: affixes, synonym rules and category
// rules are matched first-entry-wins, and the shipped order is part of the
// configuration contract.
type Tables struct {
	// Prefixes are affix tokens stripped from the start of a slug,
	// including the joining hyphen (e.g. "mcp-").
	Prefixes []string

	// Suffixes are affix tokens stripped from the end of a slug,
	// including the joining hyphen (e.g. "-mcp"). The suffix strip is
	// attempted against the already-prefix-stripped string.
	Suffixes []string

	// Synonyms folds known spelling variants of a fully-stripped slug to
	// one canonical token.
	Synonyms []SynonymRule

	// Categories is the ordered keyword vocabulary used to classify a
	// record from its attributes, keywords and description.
	Categories []CategoryRule

	// DefaultCategory is assigned when no category rule matches.
	DefaultCategory string

	// TagVocabulary is the fixed keyword list matched against lower-cased
	// descriptions when deriving search tags.
	TagVocabulary []string
}

// SynonymRule folds one spelling of a canonical token into another.
type SynonymRule struct {
	Match     string
	Canonical string
}

// CategoryRule assigns a category when any of its keywords matches.
type CategoryRule struct {
	Name     string
	Keywords []string
}

// DefaultTables returns the shipped normalization policy.
func DefaultTables() *Tables {
	return &Tables{
		Prefixes: []string{
			"mcp-",
			"plugin-",
			"client-",
			"adapter-",
			"goat-",
			"eliza-",
		},
		Suffixes: []string{
			"-mcp",
			"-server",
			"-plugin",
			"-client",
			"-adapter",
		},
		Synonyms: []SynonymRule{
			{Match: "x", Canonical: "twitter"},
			{Match: "erc-20", Canonical: "erc20"},
			{Match: "erc-721", Canonical: "erc721"},
			{Match: "erc-1155", Canonical: "erc1155"},
			{Match: "gsheets", Canonical: "google-sheets"},
			{Match: "gdrive", Canonical: "google-drive"},
			{Match: "postgresql", Canonical: "postgres"},
			{Match: "k8s", Canonical: "kubernetes"},
		},
		Categories: []CategoryRule{
			{Name: "social", Keywords: []string{
				"twitter", "discord", "telegram", "slack", "social", "farcaster", "reddit",
			}},
			{Name: "blockchain", Keywords: []string{
				"blockchain", "wallet", "solana", "ethereum", "evm", "token", "defi", "nft", "crypto",
			}},
			{Name: "ai", Keywords: []string{
				"llm", "agent", "embedding", "inference", "model", "rag",
			}},
			{Name: "data", Keywords: []string{
				"database", "postgres", "sqlite", "storage", "vector", "query",
			}},
			{Name: "developer", Keywords: []string{
				"github", "gitlab", "git", "docker", "kubernetes", "ci", "code",
			}},
		},
		DefaultCategory: "utility",
		TagVocabulary: []string{
			"search", "browser", "scraping", "email", "calendar", "payments",
			"weather", "maps", "files", "notion", "jira", "youtube", "twitter",
			"discord", "telegram", "github", "database", "wallet", "trading",
			"memory", "automation",
		},
	}
}
