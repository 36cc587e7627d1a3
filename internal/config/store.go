package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the raw configuration tree. Keeping the raw mapping next
// to the typed Config preserves keys this tool does not know about
// across partial updates.
type Document map[string]any

// Load reads a configuration document from path. An empty file yields
// an empty document, not an error. Malformed YAML yields a *ParseError.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Decode converts a document into the typed schema. Defaults apply for
// absent sections and keys; validation runs once here rather than per
// stage.
func Decode(doc Document) (Config, error) {
	cfg := Default()

	// yaml.v3 merges decoded mappings into pre-populated maps instead
	// of replacing them. A map-valued field the document supplies must
	// start from nil, or the default entries would leak into it.
	if _, ok := doc[SectionSegmentation]; ok {
		cfg.SegmentationValues = nil
	}
	if sec, ok := asDocument(doc[SectionDistance]); ok {
		if _, ok := sec["inter"]; ok {
			cfg.Distance.Inter = nil
		}
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return Config{}, fmt.Errorf("encode document: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode document: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DeepMerge merges updates into base key by key. Nested mappings merge
// recursively; scalar and list values in updates replace the base
// value. Keys only in base are preserved, keys only in updates are
// added. The inputs are not mutated.
func DeepMerge(base, updates Document) Document {
	merged := make(Document, len(base)+len(updates))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range updates {
		bv, exists := merged[k]
		if !exists {
			merged[k] = v
			continue
		}
		bm, baseIsMap := asDocument(bv)
		um, updIsMap := asDocument(v)
		if baseIsMap && updIsMap {
			merged[k] = DeepMerge(bm, um)
		} else {
			// No type coercion: a list or scalar replaces whatever
			// was there, including a mapping.
			merged[k] = v
		}
	}
	return merged
}

// asDocument normalizes the mapping types yaml.v3 produces.
func asDocument(v any) (Document, bool) {
	switch m := v.(type) {
	case Document:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}

// Save persists a document to path using backup-then-write: the
// previous file is renamed aside first and restored if the write
// fails, so a saved config is never lost to a partial write.
func Save(path string, doc Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}

	backup := path + ".bak"
	hadPrevious := false
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, backup); err != nil {
			return &WriteError{Path: path, Err: err}
		}
		hadPrevious = true
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		if hadPrevious {
			if rerr := os.Rename(backup, path); rerr != nil {
				slog.Error("failed to restore config backup", "path", backup, "error", rerr)
			}
		}
		return &WriteError{Path: path, Err: err}
	}

	if hadPrevious {
		if err := os.Remove(backup); err != nil {
			slog.Warn("failed to remove config backup", "path", backup, "error", err)
		}
	}
	return nil
}

// Section extracts a named top-level section as a document. Absent or
// non-mapping sections yield an empty document.
func Section(doc Document, name string) Document {
	if sec, ok := asDocument(doc[name]); ok {
		return sec
	}
	return Document{}
}
