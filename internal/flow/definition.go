package flow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is the serialized form of a question graph.
type Definition struct {
	Start     string     `yaml:"start,omitempty"`
	Questions []Question `yaml:"questions"`
	Rules     []Rule     `yaml:"rules,omitempty"`
}

// UnmarshalYAML accepts a bare scalar as shorthand for a literal branch:
//
//	next: education
func (b *Branch) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var target string
		if err := node.Decode(&target); err != nil {
			return err
		}
		*b = Branch{Kind: BranchLiteral, Target: target}
		return nil
	}
	type plain Branch
	var raw plain
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*b = Branch(raw)
	if b.Kind == "" && b.Target != "" {
		b.Kind = BranchLiteral
	}
	return nil
}

func ParseDefinition(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("question definition is empty")
		}
		return nil, fmt.Errorf("failed to parse question definition: %w", err)
	}
	return &def, nil
}

// Graph builds and validates the graph described by d.
func (d *Definition) Graph(reg *Registry) (*Graph, error) {
	return NewGraph(d.Questions, d.Rules, d.Start, reg)
}

func LoadGraph(data []byte, reg *Registry) (*Graph, error) {
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, err
	}
	return def.Graph(reg)
}

func LoadGraphFile(path string, reg *Registry) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question definition: %w", err)
	}
	return LoadGraph(data, reg)
}
