// Package prompt loads the YAML prompt files and renders them as Go
// text templates.
//
// Each file groups the variants of one purpose (intent classification,
// response generation, title generation) and maps a variant name to a
// template string. Files are parsed once at construction; a missing
// variant surfaces at first render.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.yaml
var embedded embed.FS

// ErrNotFound reports that a prompt file or variant does not exist.
var ErrNotFound = errors.New("prompt not found")

// Registry holds the parsed prompt templates, keyed by file then variant.
// It is populated once and safe for concurrent reads.
type Registry struct {
	files map[string]map[string]*template.Template
}

// NewEmbedded loads the prompt files compiled into the binary.
func NewEmbedded() (*Registry, error) {
	sub, err := fs.Sub(embedded, "prompts")
	if err != nil {
		return nil, fmt.Errorf("opening embedded prompts: %w", err)
	}
	return Load(sub)
}

// NewFromDir loads prompt files from a directory on disk, for deployments
// that override the embedded set.
func NewFromDir(dir string) (*Registry, error) {
	return Load(os.DirFS(dir))
}

// Load parses every *.yaml file at the root of fsys. A file that is not
// valid YAML or holds an invalid template is a configuration error.
func Load(fsys fs.FS) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("listing prompt files: %w", err)
	}

	files := make(map[string]map[string]*template.Template)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		raw, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		var variants map[string]string
		if err := yaml.Unmarshal(raw, &variants); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", entry.Name(), err)
		}

		name := strings.TrimSuffix(entry.Name(), ".yaml")
		parsed := make(map[string]*template.Template, len(variants))
		for variant, text := range variants {
			tmpl, err := template.New(name + "/" + variant).Parse(text)
			if err != nil {
				return nil, fmt.Errorf("template %s/%s: %w", name, variant, err)
			}
			parsed[variant] = tmpl
		}
		files[name] = parsed
	}

	if len(files) == 0 {
		return nil, errors.New("no prompt files found")
	}
	return &Registry{files: files}, nil
}

// Render executes the named variant of a prompt file with data. An unknown
// file or variant returns an error wrapping ErrNotFound.
func (r *Registry) Render(file, variant string, data any) (string, error) {
	variants, ok := r.files[file]
	if !ok {
		return "", fmt.Errorf("%w: file %q", ErrNotFound, file)
	}
	tmpl, ok := variants[variant]
	if !ok {
		return "", fmt.Errorf("%w: %q in file %q", ErrNotFound, variant, file)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %s/%s: %w", file, variant, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// Has reports whether the (file, variant) pair exists.
func (r *Registry) Has(file, variant string) bool {
	variants, ok := r.files[file]
	if !ok {
		return false
	}
	_, ok = variants[variant]
	return ok
}
