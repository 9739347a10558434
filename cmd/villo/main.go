/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"villoscreenplay/internal/backend"
	"villoscreenplay/internal/config"
	"villoscreenplay/internal/crash"
	"villoscreenplay/internal/domain"
	"villoscreenplay/internal/editor"
	"villoscreenplay/internal/export"
	"villoscreenplay/internal/labelpack"
	applog "villoscreenplay/internal/log"
	"villoscreenplay/internal/paginate"
	"villoscreenplay/internal/script"
	"villoscreenplay/internal/storage"
	"villoscreenplay/internal/telemetry"
	"villoscreenplay/internal/version"
)

// errUsage marks bad invocations; they exit with code 2.
var errUsage = errors.New("usage")

type app struct {
	cfg   config.AppConfig
	token string
	out   io.Writer
	log   *slog.Logger
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Villo: screenplay formatting and pagination")
	fmt.Fprintf(w, "Version: %s\n\n", version.String())
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  villo version                                    Show version")
	fmt.Fprintln(w, "  villo init <file> [--title T --author A]         Create a project")
	fmt.Fprintln(w, "  villo add <file> <kind> <text>                   Append an element")
	fmt.Fprintln(w, "  villo show <file>                                Print elements and page summary")
	fmt.Fprintln(w, "  villo import <txt> <file>                        Import a plain-text screenplay")
	fmt.Fprintln(w, "  villo export <file> <out.pdf> [--renderer fpdf|canvas] [--json path] [--lang en|es]")
	fmt.Fprintln(w, "  villo preview <file> <dir>                       Write SVG and PNG page previews")
	fmt.Fprintln(w, "  villo preset <file> <dir> <print|draft|web|all>  Run an export preset")
	fmt.Fprintln(w, "  villo search <file> <query> [--kind K] [--scene N]")
	fmt.Fprintln(w, "  villo autosave <file> [--list]                   Snapshot into the local index")
	fmt.Fprintln(w, "  villo serve [--addr :8080] [--dsn postgres://...]")
	fmt.Fprintln(w, "  villo remote login|list|push|pull                Talk to a villo server")
	fmt.Fprintln(w, "  villo labels <file> list|set|export|install      Manage custom label languages")
}

func main() {
	defer crash.Recover(nil)
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, token, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "Warning: config not loaded:", err)
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Out:       stderr,
	})
	tcfg := telemetry.FromEnv()
	tcfg.OptIn = cfg.General.TelemetryOptIn
	telemetry.SetDefault(telemetry.New(tcfg))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		telemetry.Flush(ctx)
	}()

	a := &app{cfg: cfg, token: token, out: stdout, log: applog.WithComponent("cli")}
	if len(args) == 0 {
		usage(stdout)
		return 0
	}
	a.log.Debug("start", slog.String("cmd", args[0]), slog.Int("args", len(args)))

	var cmdErr error
	switch args[0] {
	case "version", "--version", "-v":
		fmt.Fprintln(stdout, version.String())
	case "help", "--help", "-h":
		usage(stdout)
	case "init":
		cmdErr = a.initCmd(args[1:])
	case "add":
		cmdErr = a.addCmd(args[1:])
	case "show":
		cmdErr = a.showCmd(args[1:])
	case "import":
		cmdErr = a.importCmd(args[1:])
	case "export":
		cmdErr = a.exportCmd(args[1:])
	case "preview":
		if len(args) != 3 {
			cmdErr = fmt.Errorf("%w: preview requires <file> <dir>", errUsage)
			break
		}
		cmdErr = a.presetCmd([]string{args[1], args[2], string(export.PresetWeb)})
	case "preset":
		cmdErr = a.presetCmd(args[1:])
	case "search":
		cmdErr = a.searchCmd(args[1:])
	case "autosave":
		cmdErr = a.autosaveCmd(args[1:])
	case "serve":
		cmdErr = a.serveCmd(args[1:])
	case "remote":
		cmdErr = a.remoteCmd(args[1:])
	case "labels":
		cmdErr = a.labelsCmd(args[1:])
	default:
		cmdErr = fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	switch {
	case cmdErr == nil:
		return 0
	case errors.Is(cmdErr, errUsage):
		fmt.Fprintln(stderr, "Error:", cmdErr)
		usage(stderr)
		return 2
	default:
		a.log.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", cmdErr))
		fmt.Fprintln(stderr, "Error:", cmdErr)
		return 1
	}
}

// parseArgs parses flags that may appear before, between or after
// positional arguments and returns the positionals.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	fs.SetOutput(io.Discard)
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

func (a *app) open(path string) (*storage.ProjectHandle, error) {
	ph, err := storage.Open(storage.ProjectPath(path))
	if err != nil {
		return nil, err
	}
	a.cfg.AddRecent(ph.Path)
	if err := config.Save(a.cfg, ""); err != nil {
		a.log.Warn("recent projects not saved", slog.Any("err", err))
	}
	return ph, nil
}

// labels resolves lang (or the configured language) against the project's
// label files and the built-in languages.
func (a *app) labels(ph *storage.ProjectHandle, lang string) (paginate.Labels, error) {
	if lang == "" {
		lang = a.cfg.Export.Language
	}
	return labelpack.Resolve(ph.Dir, lang)
}

func (a *app) initCmd(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	title := fs.String("title", "", "cover title")
	author := fs.String("author", "", "cover author")
	ver := fs.String("version", "", "cover version or treatment number")
	date := fs.String("date", "", "cover date")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return fmt.Errorf("%w: init requires <file>", errUsage)
	}
	p := domain.Project{Screenplay: []domain.Element{}}
	if strings.TrimSpace(*title) != "" {
		p.Cover = &domain.Cover{Title: *title, Author: *author, Version: *ver, Date: *date}
	}
	ph, err := storage.Create(pos[0], p)
	if err != nil {
		return err
	}
	defer crash.Recover(ph)
	a.log.Info("project created", slog.String("path", ph.Path))
	fmt.Fprintln(a.out, "Created", ph.Path)
	return nil
}

func (a *app) addCmd(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: add requires <file> <kind> <text>", errUsage)
	}
	kind, err := domain.ParseKind(args[1])
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	ph, err := a.open(args[0])
	if err != nil {
		return err
	}
	defer crash.Recover(ph)
	doc := editor.New(ph.Project, editor.WithMaxUndo(a.cfg.General.MaxUndo))
	el, err := doc.Add(kind, strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	ph.Project = doc.Project()
	if err := storage.Save(ph); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s %s\n", el.Kind, el.ID)
	return nil
}

func (a *app) showCmd(args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	lang := fs.String("lang", "", "label language")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return fmt.Errorf("%w: show requires <file>", errUsage)
	}
	ph, err := a.open(pos[0])
	if err != nil {
		return err
	}
	defer crash.Recover(ph)
	labels, err := a.labels(ph, *lang)
	if err != nil {
		return err
	}
	p := ph.Project
	fmt.Fprintf(a.out, "Title: %s\n", p.Title())
	if !p.SavedDate.IsZero() {
		fmt.Fprintf(a.out, "Saved: %s\n", p.SavedDate.Format(time.RFC3339))
	}
	for i, e := range p.Screenplay {
		fmt.Fprintf(a.out, "%3d %-13s %s\n", i+1, e.Kind, strings.ReplaceAll(e.Text, "\n", " / "))
	}
	sum, err := backend.Summarize(p, labels)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Sheets: %d  Pages: %d  Scenes: %d\n", sum.Sheets, sum.LastPage, len(sum.Scenes))
	for _, s := range sum.Scenes {
		fmt.Fprintf(a.out, "  %d. %s (p. %d)\n", s.Number, s.Heading, s.Page)
	}
	return nil
}

func (a *app) importCmd(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: import requires <txt> <file>", errUsage)
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	sc, perrs := script.ParseReader(f)
	for _, e := range perrs {
		a.log.Warn("import", slog.String("file", args[0]), slog.Int("line", e.Line), slog.String("problem", e.Message))
		fmt.Fprintf(a.out, "warning: %s\n", e.Error())
	}
	ph, err := storage.Create(args[1], sc.Project())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Imported %d elements into %s\n", len(ph.Project.Screenplay), ph.Path)
	return nil
}

func (a *app) exportCmd(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	renderer := fs.String("renderer", a.cfg.Export.Renderer, "fpdf or canvas")
	jsonPath := fs.String("json", "", "also write layout JSON to this path")
	lang := fs.String("lang", "", "label language")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return fmt.Errorf("%w: export requires <file> <out.pdf>", errUsage)
	}
	r, err := export.ParseRenderer(*renderer)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	ph, err := a.open(pos[0])
	if err != nil {
		return err
	}
	defer crash.Recover(ph)

	labels, err := a.labels(ph, *lang)
	if err != nil {
		return err
	}
	opt := export.Options{Renderer: r, Labels: labels}
	if *jsonPath != "" {
		opt.Recorder = &paginate.Recorder{}
	}
	start := time.Now()
	res, err := export.PDFFile(ph.Project, pos[1], opt)
	if err != nil {
		return err
	}
	telemetry.ExportCompleted(string(r), "pdf", res.Sheets, time.Since(start))
	if *jsonPath != "" {
		if err := writeLayoutJSON(*jsonPath, res, opt.Recorder); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.out, "Exported %d sheets to %s\n", res.Sheets, pos[1])
	return nil
}

func writeLayoutJSON(path string, res paginate.Result, rec *paginate.Recorder) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	werr := export.WriteDebugJSON(f, res, paginate.Letter(), rec)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

func (a *app) presetCmd(args []string) error {
	fs := flag.NewFlagSet("preset", flag.ContinueOnError)
	lang := fs.String("lang", "", "label language")
	dpi := fs.Int("dpi", 0, "preview resolution")
	margins := fs.Bool("margins", false, "draw layout guides on previews")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) == 2 {
		pos = append(pos, a.cfg.Export.Preset)
	}
	if len(pos) != 3 {
		return fmt.Errorf("%w: preset requires <file> <dir> <name>", errUsage)
	}
	ph, err := a.open(pos[0])
	if err != nil {
		return err
	}
	defer crash.Recover(ph)
	labels, err := a.labels(ph, *lang)
	if err != nil {
		return err
	}
	start := time.Now()
	rep, err := export.ExportPreset(ph.Project, export.BatchOptions{
		Preset:  export.PresetName(pos[2]),
		OutDir:  pos[1],
		Name:    storage.NameOf(ph.Path),
		Labels:  labels,
		DPI:     *dpi,
		Margins: *margins,
	})
	if err != nil {
		return err
	}
	telemetry.ExportCompleted("preset:"+pos[2], "batch", rep.Result.Sheets, time.Since(start))
	for _, f := range rep.Files {
		fmt.Fprintln(a.out, f)
	}
	return nil
}

func (a *app) searchCmd(args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	var kinds stringList
	fs.Var(&kinds, "kind", "restrict to an element kind (repeatable)")
	scene := fs.Int("scene", 0, "restrict to a scene number")
	limit := fs.Int("limit", 0, "maximum hits")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) < 1 {
		return fmt.Errorf("%w: search requires <file> [query]", errUsage)
	}
	q := storage.SearchQuery{Text: strings.Join(pos[1:], " "), Scene: *scene, Limit: *limit}
	for _, k := range kinds {
		kind, err := domain.ParseKind(k)
		if err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		q.Kinds = append(q.Kinds, kind)
	}
	ph, err := a.open(pos[0])
	if err != nil {
		return err
	}
	defer crash.Recover(ph)
	ctx := context.Background()
	if err := storage.IndexProject(ctx, ph.Dir, ph.Project); err != nil {
		return err
	}
	hits, err := storage.Search(ctx, ph.Dir, q)
	if err != nil {
		return err
	}
	for _, h := range hits {
		text := h.Snippet
		if text == "" {
			text = h.Text
		}
		fmt.Fprintf(a.out, "%3d scene %-3d %-13s %s\n", h.Position+1, h.Scene, h.Kind, strings.ReplaceAll(text, "\n", " / "))
	}
	fmt.Fprintf(a.out, "%d hits\n", len(hits))
	return nil
}

type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

func (a *app) autosaveCmd(args []string) error {
	fs := flag.NewFlagSet("autosave", flag.ContinueOnError)
	list := fs.Bool("list", false, "list snapshots instead of taking one")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return fmt.Errorf("%w: autosave requires <file>", errUsage)
	}
	ph, err := a.open(pos[0])
	if err != nil {
		return err
	}
	defer crash.Recover(ph)
	ctx := context.Background()
	if *list {
		infos, err := storage.ListAutosaves(ctx, ph.Dir, 0)
		if err != nil {
			return err
		}
		for _, in := range infos {
			fmt.Fprintf(a.out, "%d %s %d elements\n", in.ID, in.SavedAt.Format(time.RFC3339), in.Elements)
		}
		return nil
	}
	info, err := storage.Autosave(ctx, ph.Dir, ph.Project)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Autosave %d: %d elements\n", info.ID, info.Elements)
	return nil
}

func (a *app) serveCmd(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	dsn := fs.String("dsn", a.cfg.Backend.DSN, "Postgres DSN for the project store")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 0 {
		return fmt.Errorf("%w: serve takes no arguments", errUsage)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *backend.Store
	if strings.TrimSpace(*dsn) != "" {
		store, err = backend.OpenStore(ctx, *dsn)
		if err != nil {
			return err
		}
		defer store.Close()
	} else {
		a.log.Warn("no database configured; project routes disabled")
	}
	r, err := export.ParseRenderer(a.cfg.Export.Renderer)
	if err != nil {
		return err
	}
	srv := backend.NewServer(backend.Config{
		Addr:     *addr,
		Secret:   a.cfg.Server.Secret,
		TokenTTL: a.cfg.Server.TokenTTL(),
		Language: a.cfg.Export.Language,
		Renderer: r,
	}, store)
	return srv.Run(ctx)
}

func (a *app) client() *backend.Client {
	c := backend.NewClient(a.cfg.Backend.BaseURL, a.token, a.cfg.Backend.EffectiveTimeout())
	if a.cfg.Backend.TLSInsecure {
		c.InsecureSkipVerify()
	}
	return c
}

func (a *app) remoteCmd(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: remote requires login|list|push|pull", errUsage)
	}
	ctx := context.Background()
	c := a.client()
	switch args[0] {
	case "login":
		fs := flag.NewFlagSet("login", flag.ContinueOnError)
		subject := fs.String("subject", "", "token subject")
		if _, err := parseArgs(fs, args[1:]); err != nil {
			return err
		}
		tok, err := c.Login(ctx, *subject)
		if err != nil {
			return err
		}
		if err := config.SetToken(tok); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Token stored in keyring")
		return nil
	case "list":
		list, err := c.ListProjects(ctx)
		if err != nil {
			return err
		}
		for _, p := range list {
			fmt.Fprintf(a.out, "%s  v%d  %s  %s\n", p.ID, p.Version, p.UpdatedAt.Format(time.RFC3339), p.Name)
		}
		return nil
	case "push":
		fs := flag.NewFlagSet("push", flag.ContinueOnError)
		id := fs.String("id", "", "remote project id (default: file name)")
		name := fs.String("name", "", "remote project name")
		pos, err := parseArgs(fs, args[1:])
		if err != nil {
			return err
		}
		if len(pos) != 1 {
			return fmt.Errorf("%w: remote push requires <file>", errUsage)
		}
		ph, err := a.open(pos[0])
		if err != nil {
			return err
		}
		if *id == "" {
			*id = storage.NameOf(ph.Path)
		}
		sum, err := c.PutProject(ctx, *id, *name, ph.Project)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Pushed %s as version %d\n", sum.ID, sum.Version)
		return nil
	case "pull":
		if len(args) != 3 {
			return fmt.Errorf("%w: remote pull requires <id> <file>", errUsage)
		}
		rec, err := c.GetProject(ctx, args[1])
		if err != nil {
			return err
		}
		path := storage.ProjectPath(args[2])
		if ph, err := storage.Open(path); err == nil {
			ph.Project = rec.Project
			if err := storage.Save(ph); err != nil {
				return err
			}
		} else if _, err := storage.Create(path, rec.Project); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Pulled %s v%d into %s\n", rec.ID, rec.Version, path)
		return nil
	}
	return fmt.Errorf("%w: unknown remote command %q", errUsage, args[0])
}

func (a *app) labelsCmd(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: labels requires <file> list|set|export|install", errUsage)
	}
	ph, err := a.open(args[0])
	if err != nil {
		return err
	}
	switch args[1] {
	case "list":
		langs, err := labelpack.Languages(ph.Dir)
		if err != nil {
			return err
		}
		for _, l := range langs {
			fmt.Fprintln(a.out, l)
		}
		return nil
	case "set":
		fs := flag.NewFlagSet("labels set", flag.ContinueOnError)
		var l paginate.Labels
		fs.StringVar(&l.WrittenBy, "written-by", "", "cover credit line")
		fs.StringVar(&l.VersionPrefix, "version-prefix", "", "prefix of the cover version line")
		fs.StringVar(&l.DatePrefix, "date-prefix", "", "prefix of the cover date line")
		fs.StringVar(&l.Placeholder, "placeholder", "", "speaker used when no cue precedes dialogue")
		pos, err := parseArgs(fs, args[2:])
		if err != nil {
			return err
		}
		if len(pos) != 1 {
			return fmt.Errorf("%w: labels set requires <lang>", errUsage)
		}
		return labelpack.Save(ph.Dir, pos[0], l)
	case "export":
		if len(args) != 3 {
			return fmt.Errorf("%w: labels export requires <zip>", errUsage)
		}
		n, err := labelpack.Export(ph.Dir, args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Exported %d languages to %s\n", n, args[2])
		return nil
	case "install":
		if len(args) != 3 {
			return fmt.Errorf("%w: labels install requires <zip>", errUsage)
		}
		n, err := labelpack.Install(ph.Dir, args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Installed %d languages\n", n)
		return nil
	}
	return fmt.Errorf("%w: unknown labels command %q", errUsage, args[1])
}
