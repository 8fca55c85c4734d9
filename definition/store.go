// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package definition

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrTemplateNotFound = errors.New("process template not found")

// Store supplies process templates to the engine
type Store interface {
	GetTemplate(processType string) (*ProcessTemplate, error)
	ListTypes() []string
}

type storeImpl struct {
	templates map[string]*ProcessTemplate
}

// NewStore returns a store of already initialized templates
func NewStore(templates ...*ProcessTemplate) (Store, error) {
	s := &storeImpl{templates: map[string]*ProcessTemplate{}}
	for _, t := range templates {
		if _, ok := s.templates[t.Type]; ok {
			return nil, fmt.Errorf("process type %v is defined twice", t.Type)
		}
		s.templates[t.Type] = t
	}
	return s, nil
}

// LoadDirectory parses every *.yaml and *.yml file in dir into a store
func LoadDirectory(dir string) (Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var templates []*ProcessTemplate
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		t, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("error loading %v: %w", e.Name(), err)
		}
		templates = append(templates, t)
	}
	return NewStore(templates...)
}

// Parse decodes and initializes a YAML template
func Parse(data []byte) (*ProcessTemplate, error) {
	t := &ProcessTemplate{}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, err
	}
	if err := t.Init(); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *storeImpl) GetTemplate(processType string) (*ProcessTemplate, error) {
	t, ok := s.templates[processType]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrTemplateNotFound, processType)
	}
	return t, nil
}

func (s *storeImpl) ListTypes() []string {
	types := make([]string, 0, len(s.templates))
	for t := range s.templates {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
