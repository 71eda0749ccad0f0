package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go-page-designer/internal/model"
	"go-page-designer/pkg/fsutils"
)

const (
	templatesDirName  = "templates"
	aliasesFileName   = "aliases.json"
	checkoutsFileName = "checkouts.json"
)

// JSONStore implements the DataStore interface using JSON files.
// Each template is stored as its own file; alias bindings and checkouts are
// kept in one index file each.
type JSONStore struct {
	// BasePath is the directory holding templates/, aliases.json and checkouts.json.
	BasePath string

	mu     sync.Mutex
	logger *slog.Logger
}

// NewJSONStore creates a new JSONStore instance.
// It ensures the base storage directories exist.
func NewJSONStore(basePath string, logger *slog.Logger) (*JSONStore, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := fsutils.CreateDir(filepath.Join(basePath, templatesDirName)); err != nil {
		return nil, fmt.Errorf("failed to create storage directory '%s': %w", basePath, err)
	}
	return &JSONStore{BasePath: basePath, logger: logger}, nil
}

// GetBasePath returns the base path of the JSON store.
func (js *JSONStore) GetBasePath() string {
	return js.BasePath
}

func (js *JSONStore) templatePath(templateID string) string {
	return filepath.Join(js.BasePath, templatesDirName, fsutils.SanitizeFilename(templateID)+".json")
}

// SaveTemplate persists the template tree to a JSON file.
func (js *JSONStore) SaveTemplate(t *model.TemplateInstance) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("template ID cannot be empty")
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal template %s: %w", t.ID, err)
	}

	js.mu.Lock()
	defer js.mu.Unlock()
	filePath := js.templatePath(t.ID)
	if err := fsutils.WriteToFile(filePath, data); err != nil {
		return fmt.Errorf("failed to write template file %s: %w", filePath, err)
	}
	js.logger.Debug("Saved template", "templateID", t.ID, "path", filePath, "revision", t.Revision)
	return nil
}

// LoadTemplate reads a template from its JSON file.
func (js *JSONStore) LoadTemplate(templateID string) (*model.TemplateInstance, error) {
	if templateID == "" {
		return nil, fmt.Errorf("template ID cannot be empty")
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.loadTemplateLocked(templateID)
}

func (js *JSONStore) loadTemplateLocked(templateID string) (*model.TemplateInstance, error) {
	filePath := js.templatePath(templateID)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("template %s: %w", templateID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read template file %s: %w", filePath, err)
	}

	var t model.TemplateInstance
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template data from %s: %w", filePath, err)
	}
	return &t, nil
}

// GetAllTemplateIDs scans the templates directory and returns the stored IDs.
func (js *JSONStore) GetAllTemplateIDs() ([]string, error) {
	templates, err := js.ReadAll()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(templates))
	for _, t := range templates {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// DeleteTemplate removes the template file, its alias bindings and its checkout.
func (js *JSONStore) DeleteTemplate(templateID string) error {
	if templateID == "" {
		return fmt.Errorf("template ID cannot be empty")
	}
	js.mu.Lock()
	defer js.mu.Unlock()

	filePath := js.templatePath(templateID)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete template file %s: %w", filePath, err)
	}

	aliases, err := js.readAliasesLocked()
	if err != nil {
		return err
	}
	changed := false
	for alias, id := range aliases {
		if id == templateID {
			delete(aliases, alias)
			changed = true
		}
	}
	if changed {
		if err := js.writeIndexLocked(aliasesFileName, aliases); err != nil {
			return err
		}
	}

	checkouts, err := js.readCheckoutsLocked()
	if err != nil {
		return err
	}
	if _, ok := checkouts[templateID]; ok {
		delete(checkouts, templateID)
		if err := js.writeIndexLocked(checkoutsFileName, checkouts); err != nil {
			return err
		}
	}
	js.logger.Debug("Deleted template", "templateID", templateID)
	return nil
}

// ReadAll loads every stored template, ordered by ID.
func (js *JSONStore) ReadAll() ([]*model.TemplateInstance, error) {
	js.mu.Lock()
	defer js.mu.Unlock()

	dir := filepath.Join(js.BasePath, templatesDirName)
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*model.TemplateInstance{}, nil
		}
		return nil, fmt.Errorf("failed to read storage directory %s: %w", dir, err)
	}

	templates := make([]*model.TemplateInstance, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") || strings.HasPrefix(file.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read template file %s: %w", file.Name(), err)
		}
		var t model.TemplateInstance
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal template file %s: %w", file.Name(), err)
		}
		templates = append(templates, &t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })
	return templates, nil
}

// BindAlias points aliasPath at templateID.
func (js *JSONStore) BindAlias(aliasPath, templateID string) error {
	if aliasPath == "" || templateID == "" {
		return fmt.Errorf("alias path and template ID are required")
	}
	js.mu.Lock()
	defer js.mu.Unlock()

	aliases, err := js.readAliasesLocked()
	if err != nil {
		return err
	}
	aliases[aliasPath] = templateID
	return js.writeIndexLocked(aliasesFileName, aliases)
}

// ResolveAlias returns the template bound to aliasPath.
func (js *JSONStore) ResolveAlias(aliasPath string) (string, error) {
	js.mu.Lock()
	defer js.mu.Unlock()

	aliases, err := js.readAliasesLocked()
	if err != nil {
		return "", err
	}
	id, ok := aliases[aliasPath]
	if !ok {
		return "", fmt.Errorf("alias %s: %w", aliasPath, ErrNotFound)
	}
	return id, nil
}

// CheckOut takes the edit lock of a template.
func (js *JSONStore) CheckOut(templateID string, userID int) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if _, err := js.loadTemplateLocked(templateID); err != nil {
		return err
	}
	checkouts, err := js.readCheckoutsLocked()
	if err != nil {
		return err
	}
	if current, ok := checkouts[templateID]; ok && current.UserID != userID {
		return fmt.Errorf("template %s held by user %d: %w", templateID, current.UserID, ErrCheckedOut)
	}
	checkouts[templateID] = Checkout{TemplateID: templateID, UserID: userID, CheckedOutAt: time.Now().UTC()}
	return js.writeIndexLocked(checkoutsFileName, checkouts)
}

// CheckIn releases the edit lock of a template.
func (js *JSONStore) CheckIn(templateID string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	checkouts, err := js.readCheckoutsLocked()
	if err != nil {
		return err
	}
	if _, ok := checkouts[templateID]; !ok {
		return nil
	}
	delete(checkouts, templateID)
	return js.writeIndexLocked(checkoutsFileName, checkouts)
}

// CheckedOutBy returns the current lock of a template.
func (js *JSONStore) CheckedOutBy(templateID string) (Checkout, bool, error) {
	js.mu.Lock()
	defer js.mu.Unlock()

	checkouts, err := js.readCheckoutsLocked()
	if err != nil {
		return Checkout{}, false, err
	}
	c, ok := checkouts[templateID]
	return c, ok, nil
}

func (js *JSONStore) readAliasesLocked() (map[string]string, error) {
	aliases := make(map[string]string)
	if err := js.readIndexLocked(aliasesFileName, &aliases); err != nil {
		return nil, err
	}
	return aliases, nil
}

func (js *JSONStore) readCheckoutsLocked() (map[string]Checkout, error) {
	checkouts := make(map[string]Checkout)
	if err := js.readIndexLocked(checkoutsFileName, &checkouts); err != nil {
		return nil, err
	}
	return checkouts, nil
}

// readIndexLocked decodes an index file into v. A missing file leaves v untouched.
func (js *JSONStore) readIndexLocked(name string, v any) error {
	path := filepath.Join(js.BasePath, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read index %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal index %s: %w", path, err)
	}
	return nil
}

func (js *JSONStore) writeIndexLocked(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index %s: %w", name, err)
	}
	path := filepath.Join(js.BasePath, name)
	if err := fsutils.WriteToFile(path, data); err != nil {
		return fmt.Errorf("failed to write index %s: %w", path, err)
	}
	return nil
}
