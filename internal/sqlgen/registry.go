// Package sqlgen renders change-log actions into vendor SQL and executes
// them.
//
// Statements come from text/template sets. Every vendor starts from the
// templates under templates/default; a vendor directory redefines the
// templates whose syntax differs. Each template renders one statement and
// blank output means there is nothing to execute.
package sqlgen

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"text/template"

	"github.com/warpdb/warp/internal/dbms"
	"github.com/warpdb/warp/internal/model"
)

//go:embed templates
var templateFS embed.FS

// templateDirs lists the directories parsed for a vendor, in override order.
func templateDirs(p *dbms.Profile) []string {
	switch p.Subprotocol {
	case "mariadb":
		return []string{"default", "mysql"}
	}
	return []string{"default", p.Subprotocol}
}

// Registry caches one parsed template set per vendor. A set is parsed by the
// first caller that needs it and shared afterwards.
type Registry struct {
	mu   sync.Mutex
	sets map[string]*template.Template
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sets: make(map[string]*template.Template)}
}

// Templates returns the template set for p.
func (r *Registry) Templates(p *dbms.Profile) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.sets[p.Subprotocol]; ok {
		return t, nil
	}
	t, err := parseTemplates(p)
	if err != nil {
		return nil, err
	}
	r.sets[p.Subprotocol] = t
	return t, nil
}

func parseTemplates(p *dbms.Profile) (*template.Template, error) {
	t := template.New(p.Subprotocol).Funcs(funcs(p))
	for _, dir := range templateDirs(p) {
		files, err := fs.Glob(templateFS, path.Join("templates", dir, "*.tmpl"))
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			continue
		}
		if t, err = t.ParseFS(templateFS, files...); err != nil {
			return nil, fmt.Errorf("parse %s templates: %w", dir, err)
		}
	}
	return t, nil
}

func funcs(p *dbms.Profile) template.FuncMap {
	qualified := func(ref model.TableRef, name string) string {
		var parts []string
		if ref.Catalog != "" {
			parts = append(parts, p.QuoteIdentifier(ref.Catalog))
		}
		if ref.Schema != "" {
			parts = append(parts, p.QuoteIdentifier(ref.Schema))
		}
		return strings.Join(append(parts, p.QuoteIdentifier(name)), ".")
	}
	return template.FuncMap{
		"quote": p.QuoteIdentifier,
		"table": func(ref model.TableRef) string {
			return qualified(ref, ref.Name)
		},
		// qualify names an object living next to a table, like an index.
		"qualify": qualified,
		"columns": func(names []string) string {
			quoted := make([]string, len(names))
			for i, n := range names {
				quoted[i] = p.QuoteIdentifier(n)
			}
			return strings.Join(quoted, ", ")
		},
		"pairColumns": func(pairs []model.ColumnPair) []string {
			out := make([]string, len(pairs))
			for i, pr := range pairs {
				out[i] = pr.Column
			}
			return out
		},
		"referencedColumns": func(pairs []model.ColumnPair) []string {
			out := make([]string, len(pairs))
			for i, pr := range pairs {
				out[i] = pr.ReferencedColumn
			}
			return out
		},
		"literal": func(s string) string {
			return "'" + strings.ReplaceAll(s, "'", "''") + "'"
		},
		"placeholders": func(n int) string {
			return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
		},
		"stored": p.StoredName,
		"upper":  strings.ToUpper,
	}
}
