package sources

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/compose-market/connector/internal/config"
)

//go:embed schemas/servers.schema.json
var serversSchemaJSON []byte

//go:embed schemas/plugins.schema.json
var pluginsSchemaJSON []byte

// schemaSet holds the compiled format schemas.
type schemaSet struct {
	servers *jsonschema.Schema
	plugins *jsonschema.Schema
}

var schemaOnce = sync.OnceValue(func() *schemaSet {
	return &schemaSet{
		servers: mustCompile("servers.schema.json", serversSchemaJSON),
		plugins: mustCompile("plugins.schema.json", pluginsSchemaJSON),
	}
})

// compiledSchemas returns the process-wide compiled schema set. The embedded
// schemas are part of the build, so compilation failure is a programmer
// error.
func compiledSchemas() *schemaSet {
	return schemaOnce()
}

func mustCompile(name string, raw []byte) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("embedded schema %s is not valid JSON: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add schema resource %s: %v", name, err))
	}

	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile schema %s: %v", name, err))
	}
	return schema
}

// validate checks a raw document against the schema for the given format.
func (s *schemaSet) validate(data []byte, format string) error {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("document is not valid JSON: %w", err)
	}

	switch format {
	case config.SourceFormatServers:
		return s.servers.Validate(instance)
	case config.SourceFormatPlugins:
		return s.plugins.Validate(instance)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
