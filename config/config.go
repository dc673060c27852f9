// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package config loads the per-stage environment variable configuration
// shared by the planner, retriever, transferrer, reaper and finisher
// daemons. Each stage declares the environment variables it needs as an
// EnvSpec and calls Load to produce a validated Values map, following the
// same read-defaults-then-validate shape as a YAML config loader: defaults
// are assigned first, an optional overlay file may pre-seed the process
// environment, and the result is checked for missing required entries
// before the stage is allowed to start.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EnvVar describes a single environment variable a stage binary requires.
type EnvVar struct {
	// Name is the environment variable's name, e.g. "TRANSFER_DIR".
	Name string
	// Required indicates the variable must be set (after defaults and any
	// overlay are applied) or Load returns an error.
	Required bool
	// Default is used when the variable is unset and Required is false.
	Default string
}

// EnvSpec is the list of environment variables a stage binary needs.
type EnvSpec []EnvVar

// Values holds the resolved string value for each EnvVar in an EnvSpec.
type Values map[string]string

// LoadOverlay reads a YAML file of key/value pairs and sets each as a
// process environment variable, but only if that variable is not already
// set. This lets a CONFIG_FILE pre-seed defaults for local and test runs
// while leaving real environment variables authoritative.
func LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("couldn't read config overlay %s: %w", path, err)
	}
	var overlay map[string]string
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("couldn't parse config overlay %s: %w", path, err)
	}
	for name, value := range overlay {
		if _, set := os.LookupEnv(name); !set {
			os.Setenv(name, value)
		}
	}
	return nil
}

// Load resolves every variable in spec against the process environment,
// applying defaults for unset optional variables and returning an error
// naming every missing required variable at once (rather than failing on
// the first one) so an operator can fix a bad environment in one pass.
func Load(spec EnvSpec) (Values, error) {
	values := make(Values, len(spec))
	var missing []string
	for _, v := range spec {
		value, set := os.LookupEnv(v.Name)
		switch {
		case set:
			values[v.Name] = value
		case v.Required:
			missing = append(missing, v.Name)
		default:
			values[v.Name] = v.Default
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}
	return values, nil
}
