/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"villoscreenplay/internal/domain"
)

func TestPreviewWebsocket(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/preview?lang=es"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteMessage(websocket.TextMessage, projectJSON(t, sampleProject())); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply previewReply
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Seq != 1 || reply.Error != "" || reply.Summary == nil {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if reply.Summary.Sheets != 1 || len(reply.Summary.Scenes) != 2 {
		t.Fatalf("unexpected summary %+v", reply.Summary)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"nope": true}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply = previewReply{}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Seq != 2 || reply.Error == "" || reply.Summary != nil {
		t.Fatalf("expected error reply, got %+v", reply)
	}

	// The connection survives a bad document.
	long := sampleProject()
	for i := 0; i < 200; i++ {
		long.Screenplay = append(long.Screenplay, domain.Element{ID: "x", Kind: domain.Action, Text: "Rain hammers the roof."})
	}
	if err := conn.WriteMessage(websocket.TextMessage, projectJSON(t, long)); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply = previewReply{}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Summary == nil || reply.Summary.Sheets < 2 {
		t.Fatalf("expected multi-page summary, got %+v", reply)
	}
}

func TestClientPaginate(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	c := NewClient(srv.URL+"/", "", time.Second)
	if c.BaseURL != srv.URL {
		t.Fatalf("base url not normalized: %q", c.BaseURL)
	}
	sum, err := c.Paginate(context.Background(), domain.Project{})
	if err != nil {
		t.Fatalf("paginate empty: %v", err)
	}
	if sum.Sheets != 1 || sum.LastPage != 0 || sum.Elements != 0 {
		t.Fatalf("empty summary %+v", sum)
	}
	sum, err = c.Paginate(context.Background(), sampleProject())
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if len(sum.Scenes) != 2 || sum.Scenes[1].Heading != "EXT. STREET - NIGHT" {
		t.Fatalf("summary %+v", sum)
	}
}

func TestClientLoginAndStatusErrors(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()
	c := NewClient(srv.URL, "", 0)

	tok, err := c.Login(context.Background(), "ana")
	if err != nil || tok == "" || c.Token != tok {
		t.Fatalf("login: tok=%q err=%v", tok, err)
	}
	_, err = c.ListProjects(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 StatusError, got %v", err)
	}
	if se.Message != "project store not configured" || !strings.Contains(se.Error(), "/api/projects") {
		t.Fatalf("status error %q", se.Error())
	}
}

func TestClientProjectCalls(t *testing.T) {
	var gotAuth, gotMethod, gotPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/projects", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"p1","name":"Pilot","version":3,"updated_at":"2026-01-01T00:00:00Z"}]`))
	})
	mux.HandleFunc("/api/projects/", func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"id":"p1","name":"Pilot","version":3,"updated_at":"2026-01-01T00:00:00Z",
				"project":{"screenplay":[{"id":"e1","type":"slugline","text":"INT. HOUSE - DAY"}],"savedDate":"2026-01-01T00:00:00Z"}}`))
		case http.MethodPut:
			_, _ = w.Write([]byte(`{"id":"p1","name":"Pilot","version":4,"updated_at":"2026-01-02T00:00:00Z"}`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "tok", time.Second)
	ctx := context.Background()

	list, err := c.ListProjects(ctx)
	if err != nil || len(list) != 1 || list[0].ID != "p1" || list[0].Version != 3 {
		t.Fatalf("list: %+v %v", list, err)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("authorization header %q", gotAuth)
	}
	rec, err := c.GetProject(ctx, "p1")
	if err != nil || rec.Project.Screenplay[0].Kind != domain.SceneHeading {
		t.Fatalf("get: %+v %v", rec, err)
	}
	sum, err := c.PutProject(ctx, "p1", "", domain.Project{})
	if err != nil || sum.Version != 4 || gotMethod != http.MethodPut {
		t.Fatalf("put: %+v %v (%s)", sum, err, gotMethod)
	}
	if err := c.DeleteProject(ctx, "p 1"); err != nil || gotMethod != http.MethodDelete || gotPath != "/api/projects/p 1" {
		t.Fatalf("delete: %v %s %s", err, gotMethod, gotPath)
	}
}
