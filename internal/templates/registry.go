// Package templates manages reusable task templates. Same whole-list JSON
// blob contract as the profile registry, with no secret component.
package templates

import (
	"encoding/json"
	"fmt"

	"autoglm/internal/ids"
	"autoglm/internal/kv"
	"autoglm/internal/logging"
)

// KeyTemplates holds the serialized template array in the plain store.
const KeyTemplates = "task_templates"

// TaskTemplate is a named, reusable task description.
type TaskTemplate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry provides CRUD over task templates.
type Registry struct {
	plain  kv.Store
	logger logging.Logger
}

// NewRegistry constructs a Registry over the injected plain store.
func NewRegistry(plain kv.Store, logger logging.Logger) *Registry {
	return &Registry{plain: plain, logger: logging.OrNop(logger)}
}

// NewID generates a fresh template identifier.
func (r *Registry) NewID() string {
	return ids.NewTemplateID()
}

// List returns every template in stored order. Malformed JSON is logged and
// yields an empty list.
func (r *Registry) List() []TaskTemplate {
	raw := r.plain.GetString(KeyTemplates, "")
	if raw == "" {
		return nil
	}
	var templates []TaskTemplate
	if err := json.Unmarshal([]byte(raw), &templates); err != nil {
		r.logger.Warn("task templates blob is malformed, treating as empty: %v", err)
		return nil
	}
	return templates
}

// Get returns the template with the given id.
func (r *Registry) Get(id string) (TaskTemplate, bool) {
	for _, tpl := range r.List() {
		if tpl.ID == id {
			return tpl, true
		}
	}
	return TaskTemplate{}, false
}

// Save upserts tpl by id: an existing entry is replaced in place, a new one
// is appended.
func (r *Registry) Save(tpl TaskTemplate) error {
	if tpl.ID == "" {
		return fmt.Errorf("template id must not be empty")
	}

	templates := r.List()
	replaced := false
	for i := range templates {
		if templates[i].ID == tpl.ID {
			templates[i] = tpl
			replaced = true
			break
		}
	}
	if !replaced {
		templates = append(templates, tpl)
	}
	return r.save(templates)
}

// Delete removes the template with the given id; unknown ids are a no-op.
func (r *Registry) Delete(id string) error {
	templates := r.List()
	kept := templates[:0]
	for _, tpl := range templates {
		if tpl.ID != id {
			kept = append(kept, tpl)
		}
	}
	return r.save(kept)
}

func (r *Registry) save(templates []TaskTemplate) error {
	encoded, err := json.Marshal(templates)
	if err != nil {
		return fmt.Errorf("encode templates: %w", err)
	}
	if err := r.plain.Set(KeyTemplates, string(encoded)); err != nil {
		return fmt.Errorf("persist templates: %w", err)
	}
	return nil
}
