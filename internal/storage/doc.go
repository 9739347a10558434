/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements screenplay project persistence and indexing.
// Projects are single <name>.villo.json files written transactionally with
// timestamped backups under .villo/backups next to the file.
// The same .villo directory holds an embedded SQLite database
// (.villo/index.sqlite) with autosave snapshots and a full-text element index.
// The database is derived state and can be deleted and rebuilt at any time.
package storage
