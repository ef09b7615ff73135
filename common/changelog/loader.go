package changelog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/altos-data/chmig/common/condition"
	"github.com/altos-data/chmig/common/logger"
	"github.com/altos-data/chmig/common/models"
)

// fileDoc is the YAML shape of one changelog file.
type fileDoc struct {
	Changes []entryDoc `yaml:"changes"`
}

// entryDoc is one entry in a changelog's changes list.
type entryDoc struct {
	ID          string   `yaml:"id"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	File        string   `yaml:"file"`
	DependsOn   []depDoc `yaml:"depends_on"`
	Condition   string   `yaml:"condition"`
}

// depDoc mirrors models.DependencyRef but keeps raw strings so missing fields
// can be rejected at load time.
type depDoc struct {
	ChangelogPath string `yaml:"changelog_path"`
	ChangeID      string `yaml:"change_id"`
}

// Loader parses a master changelog file and every file it recursively
// includes, producing the flat, ordered change list for one run.
//
// The project root is the directory containing the master changelog; all
// paths recorded on the resulting changes are relative to it.
type Loader struct {
	masterPath  string
	projectRoot string
	log         *logger.Logger
}

// NewLoader validates that the master changelog exists and returns a loader
// rooted at its directory.
func NewLoader(masterChangelogPath string, log *logger.Logger) (*Loader, error) {
	abs, err := filepath.Abs(masterChangelogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve changelog path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return nil, &NotFoundError{Path: masterChangelogPath}
	}

	return &Loader{
		masterPath:  abs,
		projectRoot: filepath.Dir(abs),
		log:         log,
	}, nil
}

// ProjectRoot returns the directory containing the master changelog.
func (l *Loader) ProjectRoot() string {
	return l.projectRoot
}

// Load walks the changelog tree depth-first and returns every change in
// traversal order. Revisiting an already-processed file stops traversal there
// without error; duplicate identities across the load are rejected.
func (l *Loader) Load() ([]*models.Change, error) {
	var changes []*models.Change
	visited := make(map[string]struct{})
	seen := make(map[models.Identity]struct{})

	if err := l.parseFile(l.masterPath, &changes, visited, seen); err != nil {
		return nil, err
	}

	l.log.Debug("changelog graph loaded", "changes", len(changes), "files", len(visited))
	return changes, nil
}

func (l *Loader) parseFile(absPath string, changes *[]*models.Change, visited map[string]struct{}, seen map[models.Identity]struct{}) error {
	relPath, err := filepath.Rel(l.projectRoot, absPath)
	if err != nil {
		return fmt.Errorf("failed to relativize changelog path %s: %w", absPath, err)
	}
	relPath = filepath.ToSlash(relPath)

	// Circular or repeated includes stop here without error.
	if _, ok := visited[relPath]; ok {
		l.log.Debug("changelog already processed, skipping", "changelog", relPath)
		return nil
	}
	visited[relPath] = struct{}{}

	doc, err := l.loadYAML(absPath, relPath)
	if err != nil {
		return err
	}

	baseDir := filepath.Dir(absPath)

	for idx, entry := range doc.Changes {
		switch models.ChangeKind(entry.Type) {
		case models.KindSQL:
			if err := l.appendSQLChange(entry, idx, relPath, baseDir, changes, seen); err != nil {
				return err
			}

		case models.KindInclude:
			if entry.File == "" {
				return &ValidationError{ChangelogPath: relPath, Position: idx, Reason: "include entry is missing 'file'"}
			}
			target := filepath.Join(baseDir, entry.File)
			if info, err := os.Stat(target); err != nil || info.IsDir() {
				return &NotFoundError{Path: entry.File, ReferencedBy: relPath}
			}
			if err := l.parseFile(target, changes, visited, seen); err != nil {
				return err
			}

		default:
			return &ValidationError{
				ChangelogPath: relPath,
				Position:      idx,
				Reason:        fmt.Sprintf("unknown change type %q", entry.Type),
			}
		}
	}

	return nil
}

func (l *Loader) appendSQLChange(entry entryDoc, idx int, relPath, baseDir string, changes *[]*models.Change, seen map[models.Identity]struct{}) error {
	if entry.File == "" {
		return &ValidationError{ChangelogPath: relPath, Position: idx, Reason: "sql entry is missing 'file'"}
	}

	scriptAbs := filepath.Join(baseDir, entry.File)
	if info, err := os.Stat(scriptAbs); err != nil || info.IsDir() {
		return &NotFoundError{Path: entry.File, ReferencedBy: relPath}
	}

	scriptRel, err := filepath.Rel(l.projectRoot, scriptAbs)
	if err != nil {
		return fmt.Errorf("failed to relativize script path %s: %w", scriptAbs, err)
	}

	changeID := entry.ID
	if changeID == "" {
		changeID = defaultChangeID(entry.File, idx)
	}

	deps := make([]models.DependencyRef, 0, len(entry.DependsOn))
	for _, dep := range entry.DependsOn {
		if dep.ChangelogPath == "" || dep.ChangeID == "" {
			return &ValidationError{
				ChangelogPath: relPath,
				Position:      idx,
				Reason:        "dependency must supply both 'changelog_path' and 'change_id'",
			}
		}
		deps = append(deps, models.DependencyRef{
			ChangelogPath: filepath.ToSlash(dep.ChangelogPath),
			ChangeID:      dep.ChangeID,
		})
	}

	var compiled *condition.Condition
	if entry.Condition != "" {
		compiled, err = condition.Compile(entry.Condition)
		if err != nil {
			return &ValidationError{ChangelogPath: relPath, Position: idx, Reason: err.Error()}
		}
	}

	change := &models.Change{
		ChangeID:          changeID,
		ChangelogPath:     relPath,
		Kind:              models.KindSQL,
		Description:       entry.Description,
		ScriptPath:        filepath.ToSlash(scriptRel),
		PositionIndex:     idx,
		Ordinal:           len(*changes),
		DependsOn:         deps,
		Condition:         entry.Condition,
		CompiledCondition: compiled,
	}

	if _, dup := seen[change.Identity()]; dup {
		return &ValidationError{
			ChangelogPath: relPath,
			Position:      idx,
			Reason:        fmt.Sprintf("duplicate change id %q", changeID),
		}
	}
	seen[change.Identity()] = struct{}{}

	*changes = append(*changes, change)
	return nil
}

func (l *Loader) loadYAML(absPath, relPath string) (*fileDoc, error) {
	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, &NotFoundError{Path: relPath}
	}

	doc := &fileDoc{}
	if err := yaml.Unmarshal(raw, doc); err != nil {
		return nil, &ValidationError{
			ChangelogPath: relPath,
			Position:      -1,
			Reason:        fmt.Sprintf("failed to parse YAML: %v", err),
		}
	}
	return doc, nil
}

// defaultChangeID derives a deterministic id from the script file name and
// the entry's position: "sql/001_init.sql" at position 0 becomes "001_init_0".
// The base name is cut at the first dot.
func defaultChangeID(scriptRef string, position int) string {
	base := filepath.Base(scriptRef)
	if cut, _, found := strings.Cut(base, "."); found {
		base = cut
	}
	return fmt.Sprintf("%s_%d", base, position)
}
