// Package manifest reads the YAML assignment manifest and compiles its
// problems into task registries.
package manifest

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Assignment is the root of a manifest
type Assignment struct {
	Title    string    `yaml:"title"`
	Problems []Problem `yaml:"problems"`
}

// Problem declares the tasks of one problem
type Problem struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Tasks       []Task `yaml:"tasks"`
}

// Task declares one task and exactly one step block
type Task struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Kind        string   `yaml:"kind"`
	Phase       string   `yaml:"phase"`
	Tags        []string `yaml:"tags"`
	Passing     []string `yaml:"passing"`
	Complete    []string `yaml:"complete"`
	Graded      *bool    `yaml:"graded"`
	Weight      float64  `yaml:"weight"`
	Inputs      []string `yaml:"inputs"`
	Timeout     string   `yaml:"timeout"`

	File     string    `yaml:"file"`
	Dir      string    `yaml:"dir"`
	Build    *Build    `yaml:"build"`
	Output   *Output   `yaml:"output"`
	ExitCode *ExitCode `yaml:"exit_code"`
	Valgrind *Valgrind `yaml:"valgrind"`
	Remove   []string  `yaml:"remove"`
}

// Build runs a shell-like command and optionally publishes its artifact
type Build struct {
	Command  string `yaml:"command"`
	Artifact string `yaml:"artifact"`
	Publish  string `yaml:"publish"`
}

// Program runs an executable published in the pool
type Program struct {
	Executable string `yaml:"executable"`
	Args       string `yaml:"args"`
	Stdin      string `yaml:"stdin"`
	TTY        bool   `yaml:"tty"`
}

// Output compares the standard output of a program
type Output struct {
	Program     `yaml:",inline"`
	Stdout      *string  `yaml:"stdout"`
	StdoutLines []string `yaml:"stdout_lines"`
	Unordered   bool     `yaml:"unordered"`
}

// ExitCode compares the exit status of a program
type ExitCode struct {
	Program `yaml:",inline"`
	Code    int `yaml:"code"`
}

// Valgrind runs a program under valgrind memcheck
type Valgrind struct {
	Program `yaml:",inline"`
	Command string `yaml:"command"`
}

// Parse decodes a manifest, rejecting unknown fields
func Parse(data []byte) (*Assignment, error) {
	var a Assignment
	if err := yaml.UnmarshalWithOptions(data, &a, yaml.DisallowUnknownField()); err != nil {
		return nil, &Error{Err: err}
	}
	return &a, nil
}

// Load reads and decodes the manifest at path
func Load(path string) (*Assignment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	a, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return a, nil
}
