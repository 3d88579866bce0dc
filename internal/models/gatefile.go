package models

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// GateDefinition is one named gate in a gate file.
type GateDefinition struct {
	Name        string `yaml:"name"`
	QueryParams `yaml:",inline"`
}

// GateFile is a list of gates evaluated in order by a single build step.
//
//	gates:
//	  - name: http-5xx
//	    query: status:500
//	    comparison: gte
//	    threshold: 10
//	    since: 1
//	    units: HOURS
type GateFile struct {
	Gates []GateDefinition `yaml:"gates"`
}

// NamedSpec pairs a validated spec with its gate name.
type NamedSpec struct {
	Name string
	Spec QuerySpec
}

func LoadGateFile(path string) ([]NamedSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Field: "gate file", Err: err}
	}
	defer f.Close()
	return ParseGateFile(f)
}

// ParseGateFile decodes and validates every gate. Unknown keys are rejected
// so that a typo cannot silently disable a gate.
func ParseGateFile(r io.Reader) ([]NamedSpec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ConfigurationError{Field: "gate file", Err: err}
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var gf GateFile
	if err := dec.Decode(&gf); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigurationError{Field: "gate file", Err: err}
	}
	if len(gf.Gates) == 0 {
		return nil, &ConfigurationError{Field: "gate file", Err: errors.New("no gates defined")}
	}

	seen := make(map[string]struct{}, len(gf.Gates))
	out := make([]NamedSpec, 0, len(gf.Gates))
	for i, g := range gf.Gates {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			name = fmt.Sprintf("gate-%d", i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, &ConfigurationError{Field: "gate file", Err: fmt.Errorf("duplicate gate name %q", name)}
		}
		seen[name] = struct{}{}

		spec, err := NewQuerySpec(g.QueryParams)
		if err != nil {
			var ce *ConfigurationError
			if errors.As(err, &ce) {
				ce.Field = name + "." + ce.Field
			}
			return nil, err
		}
		out = append(out, NamedSpec{Name: name, Spec: spec})
	}
	return out, nil
}
