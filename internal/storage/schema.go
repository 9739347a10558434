/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

//go:embed project.schema.json
var projectSchemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

// SchemaError lists the problems found while validating a project document.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "project does not match schema: " + strings.Join(e.Problems, "; ")
}

// ProjectSchema returns the embedded JSON schema for project files.
func ProjectSchema() []byte { return append([]byte(nil), projectSchemaJSON...) }

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(projectSchemaJSON))
	})
	return schema, schemaErr
}

// ValidateProjectJSON checks data against the project schema. Malformed JSON
// is reported as a plain error, schema violations as *SchemaError.
func ValidateProjectJSON(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("load project schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate project: %w", err)
	}
	if res.Valid() {
		return nil
	}
	se := &SchemaError{}
	for _, e := range res.Errors() {
		se.Problems = append(se.Problems, e.String())
	}
	return se
}
