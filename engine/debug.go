package engine

import (
	"fmt"
	"strings"
)

// DebugTemplate returns the parsed block tree of a template, one node per line.
func (v *ViewEngine) DebugTemplate(templateName string) (string, error) {
	t, err := v.store.Load(templateName)
	if err != nil {
		return "", err
	}
	return t.Tree.Dump(), nil
}

// ValidateAllTemplates parses every template in the backing source and
// checks the content marker rules, reporting every failure at once.
// Templates are read fresh and the cache is left untouched.
func (v *ViewEngine) ValidateAllTemplates() error {
	names, err := v.store.Names()
	if err != nil {
		return err
	}

	scratch := NewTemplateStore(v.store.fs, v.extension, v.logger)
	layoutKey := ""
	if v.layoutName != "" {
		layoutKey = scratch.Key(v.layoutName)
	}

	var errors []string
	for _, name := range names {
		t, err := scratch.Load(name)
		if err != nil {
			errors = append(errors, err.Error())
			continue
		}
		if name == layoutKey {
			if err := checkLayout(t); err != nil {
				errors = append(errors, err.Error())
			}
			continue
		}
		if t.Tree.ContentMarkers > 0 {
			errors = append(errors, fmt.Sprintf("%s: %v: {{{content}}} is only allowed in the layout", name, ErrContentMarker))
		}
	}
	v.logger.Debug("templates validated", "count", len(names), "failed", len(errors))

	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %s", strings.Join(errors, "\n"))
	}
	return nil
}
