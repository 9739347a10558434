/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestDetectAndRebuildIndex_OnCorruption(t *testing.T) {
	dir := t.TempDir()
	proj := sampleProject()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := IndexProject(ctx, dir, proj); err != nil {
		t.Fatalf("IndexProject: %v", err)
	}
	rebuilt, err := DetectAndRebuildIndex(ctx, dir, proj)
	if err != nil || rebuilt {
		t.Fatalf("healthy index: rebuilt=%v err=%v", rebuilt, err)
	}

	if err := os.WriteFile(IndexPath(dir), []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	rebuilt, err = DetectAndRebuildIndex(ctx, dir, proj)
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if !rebuilt {
		t.Fatalf("expected rebuild to occur")
	}
	hits, err := Search(ctx, dir, SearchQuery{Text: "fog"})
	if err != nil {
		t.Fatalf("search after rebuild: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit after rebuild, got %d", len(hits))
	}
	entries, _ := os.ReadDir(BackupsDir(dir))
	if len(entries) == 0 {
		t.Fatalf("expected index backup in %s", BackupsDir(dir))
	}
}
