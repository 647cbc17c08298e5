/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package sceneio reads and writes the scene document:
//
//	{"items": [{"id": "box-1", "kind": "box", "x": 10, "y": 20, "width": 100, "height": 80, "color": "#4a90e2"}]}
//
// Imports are checked against an embedded JSON Schema before semantic validation.
package sceneio

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"notesboard/internal/domain"
)

//go:embed scene.schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// Schema returns the raw JSON Schema for scene documents.
func Schema() []byte { return append([]byte(nil), schemaJSON...) }

// FileName is the default name for an exported board.
const FileName = "board.json"

// MaxFetchBytes bounds Fetch bodies when the caller gives no limit.
const MaxFetchBytes = 1 << 20

// ValidationError lists every problem found in a rejected document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid scene document: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid scene document (%d problems): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// Export serializes the scene as indented JSON with a trailing newline.
func Export(s domain.Scene) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return append(b, '\n'), nil
}

// Encode writes Export(s) to w.
func Encode(w io.Writer, s domain.Scene) error {
	b, err := Export(s)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Import parses and validates a scene document. On failure no scene is returned.
func Import(data []byte) (domain.Scene, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.Scene{}, &ValidationError{Problems: []string{"document is empty"}}
	}
	if !json.Valid(data) {
		var doc any
		err := json.Unmarshal(data, &doc)
		return domain.Scene{}, &ValidationError{Problems: []string{"malformed JSON: " + errString(err)}}
	}
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return domain.Scene{}, fmt.Errorf("schema validate: %w", err)
	}
	if !result.Valid() {
		probs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			probs = append(probs, e.String())
		}
		return domain.Scene{}, &ValidationError{Problems: probs}
	}
	var s domain.Scene
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.Scene{}, &ValidationError{Problems: []string{err.Error()}}
	}
	if probs := s.Problems(); len(probs) > 0 {
		return domain.Scene{}, &ValidationError{Problems: probs}
	}
	return s, nil
}

// Decode reads a whole document from r and imports it.
func Decode(r io.Reader) (domain.Scene, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.Scene{}, fmt.Errorf("read scene: %w", err)
	}
	return Import(data)
}

// ErrTooLarge is returned by Fetch when the body exceeds the limit.
var ErrTooLarge = errors.New("scene document too large")

// Fetch downloads and imports a scene document from url. maxBytes <= 0 uses
// MaxFetchBytes. A nil client uses http.DefaultClient.
func Fetch(ctx context.Context, client *http.Client, url string, maxBytes int64) (domain.Scene, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = MaxFetchBytes
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Scene{}, fmt.Errorf("fetch scene: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return domain.Scene{}, fmt.Errorf("fetch scene: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Scene{}, fmt.Errorf("fetch scene: %s returned %s", url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return domain.Scene{}, fmt.Errorf("fetch scene: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return domain.Scene{}, fmt.Errorf("fetch scene: %w (limit %d bytes)", ErrTooLarge, maxBytes)
	}
	return Import(data)
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
