package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/altos-data/chmig/common/logger"
)

// TemplateError wraps a failure to locate, parse, or execute a script
// template or one of its macros.
type TemplateError struct {
	ScriptPath string
	Err        error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template rendering failed for %s: %v", e.ScriptPath, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// Renderer turns a script reference plus variables into final executable SQL.
// Macro templates from the shared macros directory are parsed into every
// render so scripts can invoke them by name.
type Renderer struct {
	projectRoot string
	macrosDir   string
	log         *logger.Logger
}

// New creates a renderer rooted at the project directory. macrosDir is
// relative to the project root; a missing macros directory is not an error.
func New(projectRoot, macrosDir string, log *logger.Logger) *Renderer {
	return &Renderer{
		projectRoot: projectRoot,
		macrosDir:   macrosDir,
		log:         log,
	}
}

// Render loads the script at scriptPath (relative to the project root),
// parses it together with any shared macros, and executes it with the given
// variables.
func (r *Renderer) Render(scriptPath string, variables map[string]any) (string, error) {
	fullPath := filepath.Join(r.projectRoot, scriptPath)

	raw, err := os.ReadFile(fullPath)
	if err != nil {
		return "", &TemplateError{ScriptPath: scriptPath, Err: err}
	}

	tmpl := template.New(filepath.Base(scriptPath)).
		Funcs(sprig.TxtFuncMap())

	if macros := r.macroFiles(); len(macros) > 0 {
		if tmpl, err = tmpl.ParseFiles(macros...); err != nil {
			return "", &TemplateError{ScriptPath: scriptPath, Err: fmt.Errorf("failed to parse macros: %w", err)}
		}
	}

	if tmpl, err = tmpl.Parse(string(raw)); err != nil {
		return "", &TemplateError{ScriptPath: scriptPath, Err: err}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, variables); err != nil {
		return "", &TemplateError{ScriptPath: scriptPath, Err: err}
	}

	return buf.String(), nil
}

// macroFiles lists the shared macro templates, if the macros directory exists.
func (r *Renderer) macroFiles() []string {
	dir := filepath.Join(r.projectRoot, r.macrosDir)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if r.macrosDir != "" && err != nil && !os.IsNotExist(err) {
			r.log.Warn("macros directory not readable", "dir", dir, "error", err)
		}
		return nil
	}

	var files []string
	for _, pattern := range []string{"*.tmpl", "*.sql"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			r.log.Warn("failed to list macro files", "dir", dir, "pattern", pattern, "error", err)
			continue
		}
		files = append(files, matches...)
	}
	return files
}
