package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sistedes/dspace-migrator/internal/archive"
	"github.com/sistedes/dspace-migrator/internal/doccache"
	"github.com/sistedes/dspace-migrator/internal/dspace"
	"github.com/sistedes/dspace-migrator/internal/identity"
	"github.com/sistedes/dspace-migrator/internal/journal"
	"github.com/sistedes/dspace-migrator/internal/names"
	"github.com/sistedes/dspace-migrator/internal/source"
)

// memRepo is an in-memory repository. Every mutating call is appended to
// calls.
type memRepo struct {
	next       int
	entities   map[string]*archive.Entity
	children   map[string][]string
	persons    []archive.Person
	calls      []string
	failCreate string
	schemaErr  error
}

func newMemRepo() *memRepo {
	return &memRepo{entities: make(map[string]*archive.Entity), children: make(map[string][]string)}
}

func (r *memRepo) id() string {
	r.next++
	return fmt.Sprintf("obj-%03d", r.next)
}

func (r *memRepo) Login(context.Context) error { return nil }

func (r *memRepo) Site(context.Context) (dspace.Site, error) {
	return dspace.Site{ID: "site", Name: "Biblioteca", Handle: "11705/0"}, nil
}

func (r *memRepo) EnsureSchema(_ context.Context, prefix, _ string, _ []string) error {
	r.calls = append(r.calls, "schema "+prefix)
	return r.schemaErr
}

func (r *memRepo) list(parentID string, kind archive.Kind) []archive.Entity {
	var out []archive.Entity
	for _, id := range r.children[parentID] {
		if e := r.entities[id]; e.Kind == kind {
			out = append(out, *e)
		}
	}
	return out
}

func (r *memRepo) TopCommunities(context.Context) ([]archive.Entity, error) {
	return r.list("", archive.KindCommunity), nil
}

func (r *memRepo) SubCommunities(_ context.Context, id string) ([]archive.Entity, error) {
	return r.list(id, archive.KindCommunity), nil
}

func (r *memRepo) Collections(_ context.Context, id string) ([]archive.Entity, error) {
	return r.list(id, archive.KindCollection), nil
}

func (r *memRepo) FindItem(_ context.Context, collectionID, sistedesID string) (*archive.Entity, error) {
	for _, e := range r.list(collectionID, archive.KindItem) {
		if e.SistedesID == sistedesID {
			return &e, nil
		}
	}
	return nil, nil
}

func (r *memRepo) add(parentID string, e *archive.Entity) error {
	if e.SistedesID == r.failCreate {
		return errors.New("boom")
	}
	e.ID = r.id()
	e.Handle = "11705/" + e.ID
	e.ParentID = parentID
	stored := *e
	stored.Extra = e.Extra.Clone()
	r.entities[e.ID] = &stored
	r.children[parentID] = append(r.children[parentID], e.ID)
	r.calls = append(r.calls, fmt.Sprintf("create %s %s", e.Kind, e.SistedesID))
	return nil
}

func (r *memRepo) CreateCommunity(_ context.Context, parentID string, e *archive.Entity) error {
	return r.add(parentID, e)
}

func (r *memRepo) CreateCollection(_ context.Context, parentID string, e *archive.Entity) error {
	return r.add(parentID, e)
}

func (r *memRepo) CreateItem(_ context.Context, collectionID string, e *archive.Entity) error {
	return r.add(collectionID, e)
}

func (r *memRepo) CreateItemTemplate(_ context.Context, collectionID string, _ archive.Metadata) error {
	r.calls = append(r.calls, "template "+r.entities[collectionID].SistedesID)
	return nil
}

func (r *memRepo) SearchPersons(_ context.Context, query string) ([]archive.Person, error) {
	var out []archive.Person
	for _, p := range r.persons {
		if personMatches(p, query) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memRepo) CreatePerson(_ context.Context, _ string, p archive.Person) (archive.Person, error) {
	p.ID = r.id()
	r.persons = append(r.persons, p)
	r.calls = append(r.calls, "create person "+p.FullName())
	return p, nil
}

func (r *memRepo) PatchPerson(_ context.Context, plan identity.MergePlan) error {
	for i := range r.persons {
		if r.persons[i].ID == plan.PersonID {
			r.persons[i] = plan.Apply(r.persons[i])
		}
	}
	r.calls = append(r.calls, "patch person "+plan.PersonID)
	return nil
}

func (r *memRepo) CreateRelationship(_ context.Context, t archive.RelationType, itemID, personID string) error {
	r.calls = append(r.calls, fmt.Sprintf("relate %d %s %s", t, r.entities[itemID].SistedesID, personID))
	return nil
}

func (r *memRepo) CreateBundle(_ context.Context, itemID, name string) (string, error) {
	r.calls = append(r.calls, fmt.Sprintf("bundle %s %s", r.entities[itemID].SistedesID, name))
	return r.id(), nil
}

func (r *memRepo) UploadBitstream(_ context.Context, bundleID, filename string, rd io.Reader) (string, error) {
	if _, err := io.ReadAll(rd); err != nil {
		return "", err
	}
	r.calls = append(r.calls, "upload "+filename)
	return r.id(), nil
}

func (r *memRepo) RemoveFirstPolicy(_ context.Context, objectID string) error {
	r.calls = append(r.calls, "remove policy "+objectID)
	return nil
}

func (r *memRepo) count(prefix string) int {
	n := 0
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (r *memRepo) bySistedesID(id string) *archive.Entity {
	for _, e := range r.entities {
		if e.SistedesID == id {
			return e
		}
	}
	return nil
}

type fakeSource struct {
	conferences []source.Conference
	editions    map[string][]source.Edition
	tracks      map[string][]source.Track
	articles    map[string]source.Article
	bulletins   []source.Bulletin
	seminars    []source.Seminar
}

func (s *fakeSource) Conferences(context.Context) ([]source.Conference, error) {
	return s.conferences, nil
}

func (s *fakeSource) Editions(_ context.Context, c source.Conference) ([]source.Edition, error) {
	return s.editions[c.Acronym], nil
}

func (s *fakeSource) Tracks(_ context.Context, e source.Edition) ([]source.Track, error) {
	return s.tracks[e.ID], nil
}

func (s *fakeSource) Articles(_ context.Context, n source.Node) ([]source.Article, error) {
	var out []source.Article
	for _, u := range n.ArticleURLs {
		out = append(out, s.articles[u])
	}
	return out, nil
}

func (s *fakeSource) CountArticles(ctx context.Context, e source.Edition) (int, error) {
	n := len(e.ArticleURLs)
	for _, t := range s.tracks[e.ID] {
		n += len(t.ArticleURLs)
	}
	return n, nil
}

func (s *fakeSource) Bulletins(context.Context) ([]source.Bulletin, error) { return s.bulletins, nil }

func (s *fakeSource) Seminars(context.Context) ([]source.Seminar, error) { return s.seminars, nil }

// library builds two conferences: JISBD 2020 with articles outside any
// track, and PROLE with an empty 2018 edition and a 2019 edition made of
// one track and one front-matter track.
func library() *fakeSource {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	ana := source.AuthorMention{Name: "Ana Gil Ruiz", Email: "ana@uma.es", Affiliation: "Universidad de Málaga"}
	return &fakeSource{
		conferences: []source.Conference{
			{Node: source.Node{ID: "21", Title: "Ingeniería del Software y Bases de Datos (JISBD)"}, Acronym: "JISBD"},
			{Node: source.Node{ID: "20", Title: "Programación y Lenguajes (PROLE)", Description: "<p>Jornadas de PROLE.</p>"}, Acronym: "PROLE"},
		},
		editions: map[string][]source.Edition{
			"JISBD": {{Node: source.Node{ID: "210", Title: "JISBD 2020 (Málaga)", ArticleURLs: []string{"a7"}}, Conference: "JISBD", Year: 2020, Date: day(2020, 9, 2)}},
			"PROLE": {
				{Node: source.Node{ID: "200", Title: "PROLE 2018 (Sevilla)"}, Conference: "PROLE", Year: 2018, Date: day(2018, 9, 11)},
				{Node: source.Node{ID: "201", Title: "PROLE 2019 (Cáceres)", Description: "<p>Actas.</p>" + bibtexTag}, Conference: "PROLE", Year: 2019, Date: day(2019, 9, 2)},
			},
		},
		tracks: map[string][]source.Track{
			"201": {
				{Node: source.Node{ID: "300", Title: "Sesión 1: Semántica", ArticleURLs: []string{"a5", "a4"}}},
				{Node: source.Node{ID: "301", Link: "https://biblioteca.sistedes.es/301", Title: "Comité de programa", Description: "<p><strong>Presidente</strong></p>\n<p>Ana Gil</p>"}},
			},
		},
		articles: map[string]source.Article{
			"a7": {ID: "7", Title: "Un artículo de JISBD", Handle: "11705/JISBD/2020/007", License: source.LicenseCCBY, Authors: []source.AuthorMention{ana}},
			"a5": {ID: "5", Title: "Tipos dependientes", IsAbstract: true, Abstract: "Un resumen.", Handle: "11705/PROLE/2019/005", License: source.LicensePublished,
				Keywords: []string{"Agda"}, DocumentURL: "https://biblioteca.sistedes.es/5.pdf",
				Authors: []source.AuthorMention{ana, {Name: "Juan Pérez"}}},
			"a4": {ID: "4", Title: "Otro artículo", License: source.LicenseRestricted, DocumentURL: "https://biblioteca.sistedes.es/4.pdf",
				Authors: []source.AuthorMention{{Name: "Marta López"}}},
		},
	}
}

type fakeDocs struct {
	dir   string
	media map[string][]doccache.Document
}

func (d *fakeDocs) write(name string) (string, error) {
	path := filepath.Join(d.dir, name)
	return path, os.WriteFile(path, []byte("content of "+name), 0o644)
}

func (d *fakeDocs) PDF(_ context.Context, identifier, _ string) (doccache.Document, error) {
	name := doccache.FileName(identifier) + ".pdf"
	path, err := d.write(name)
	return doccache.Document{Path: path, Name: name, Pages: 12}, err
}

func (d *fakeDocs) FrontMatter(identifier, _, _ string) (doccache.Document, error) {
	name := doccache.FileName(identifier) + ".html"
	path, err := d.write(name)
	return doccache.Document{Path: path, Name: name}, err
}

func (d *fakeDocs) Media(identifier string) ([]doccache.Document, error) {
	return d.media[identifier], nil
}

type fakeRegistrar struct {
	handles map[string]string
	err     error
}

func (f *fakeRegistrar) Register(_ context.Context, h, target string) error {
	if f.err != nil {
		return f.err
	}
	f.handles[h] = target
	return nil
}

type memRecorder struct {
	entities  []journal.Entity
	decisions []journal.Decision
}

func (m *memRecorder) Entity(e journal.Entity) error {
	m.entities = append(m.entities, e)
	return nil
}

func (m *memRecorder) Decision(d journal.Decision) error {
	m.decisions = append(m.decisions, d)
	return nil
}

func (m *memRecorder) identifiers(outcome string) []string {
	var out []string
	for _, e := range m.entities {
		if e.Outcome == outcome {
			out = append(out, e.Identifier)
		}
	}
	return out
}

type harness struct {
	src       *fakeSource
	repo      *memRepo
	docs      *fakeDocs
	registrar *fakeRegistrar
	recorder  *memRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		src:       library(),
		repo:      newMemRepo(),
		docs:      &fakeDocs{dir: t.TempDir()},
		registrar: &fakeRegistrar{handles: make(map[string]string)},
	}
}

func (h *harness) run(t *testing.T, opts Options, extra ...Option) (*Report, error) {
	t.Helper()
	h.recorder = &memRecorder{}
	clock := func() time.Time { return time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC) }
	options := append([]Option{
		WithRegistrar(h.registrar),
		WithDocuments(h.docs),
		WithRecorder(h.recorder),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(clock),
	}, extra...)
	splitter := names.NewNormalizer(nil, nil, nil)
	return New(h.src, h.repo, splitter, opts, options...).Run(context.Background())
}

func TestRun_Live(t *testing.T) {
	h := newHarness(t)
	report, err := h.run(t, Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Prefix != "11705" {
		t.Errorf("prefix = %q, want site prefix 11705", report.Prefix)
	}
	wantCounts := map[string]Counts{
		"communities": {Created: 5},
		"collections": {Created: 4},
		"items":       {Created: 4},
	}
	gotCounts := map[string]Counts{"communities": report.Communities, "collections": report.Collections, "items": report.Items}
	if !reflect.DeepEqual(gotCounts, wantCounts) {
		t.Errorf("counts = %+v, want %+v", gotCounts, wantCounts)
	}

	created := h.recorder.identifiers(journal.OutcomeCreated)
	sort.Strings(created)
	wantIDs := []string{
		"11705/JISBD",
		"11705/JISBD/2020",
		"11705/JISBD/2020/007",
		"11705/JISBD/2020/ARTICULOS",
		"11705/PROLE",
		"11705/PROLE/2019",
		"11705/PROLE/2019/005",
		"11705/PROLE/2019/PRELIMINARES",
		"11705/PROLE/2019/PRELIMINARES/CP",
		"11705/PROLE/2019/SEMANTICA",
		"11705/PROLE/2019/SEMANTICA/4",
		"11705/SISTEDES",
		"11705/SISTEDES/AUTHORS",
	}
	if !reflect.DeepEqual(created, wantIDs) {
		t.Errorf("created identifiers =\n%v\nwant\n%v", created, wantIDs)
	}

	// skip rule
	if !reflect.DeepEqual(report.SkippedEditions, []string{"11705/PROLE/2018"}) {
		t.Errorf("skipped editions = %v", report.SkippedEditions)
	}
	if h.repo.bySistedesID("11705/PROLE/2018") != nil {
		t.Error("empty edition was created")
	}

	// handles point at the repository's own handles
	if len(h.registrar.handles) != 13 || report.Registered != 13 {
		t.Errorf("registered %d handles (report %d), want 13", len(h.registrar.handles), report.Registered)
	}
	prole := h.repo.bySistedesID("11705/PROLE")
	if got := h.registrar.handles["11705/PROLE"]; got != "https://hdl.handle.net/"+prole.Handle {
		t.Errorf("PROLE handle target = %q", got)
	}

	// authors: Ana is created once and matched exactly the second time
	if report.PersonsCreated != 3 || report.PersonsUpdated != 0 {
		t.Errorf("persons created/updated = %d/%d, want 3/0", report.PersonsCreated, report.PersonsUpdated)
	}
	if report.Decisions[identity.TierExact] != 1 || report.Decisions[identity.TierNone] != 3 {
		t.Errorf("decisions = %v", report.Decisions)
	}
	if n := h.repo.count("relate 2 11705/PROLE/2019/005"); n != 2 {
		t.Errorf("abstract relationships = %d, want 2", n)
	}
	if n := h.repo.count("relate 1 "); n != 2 {
		t.Errorf("paper relationships = %d, want 2", n)
	}

	// files: two PDFs and the front matter; the restricted one loses its policy
	if report.Files != 3 || h.repo.count("upload ") != 3 {
		t.Errorf("files = %d, uploads = %d, want 3", report.Files, h.repo.count("upload "))
	}
	if h.repo.count("bundle 11705/PROLE/2019/PRELIMINARES/CP OTHER") != 1 {
		t.Error("front matter not stored in OTHER")
	}
	if h.repo.count("remove policy ") != 1 {
		t.Errorf("policies removed = %d, want 1", h.repo.count("remove policy "))
	}
	if !reflect.DeepEqual(report.MissingFiles, []string{"11705/JISBD/2020/007"}) {
		t.Errorf("missing files = %v", report.MissingFiles)
	}

	// metadata
	a5 := h.repo.bySistedesID("11705/PROLE/2019/005")
	if a5.Extra.First(archive.KeyIsFormatOf) != alreadyPublished || a5.Extra.First(archive.KeyRights) != string(source.LicenseCCBYNCND) {
		t.Errorf("published article rights = %v", a5.Extra)
	}
	if got := a5.Extra[archive.KeyAuthor]; !reflect.DeepEqual(got, []string{"Gil Ruiz, Ana", "Pérez, Juan"}) {
		t.Errorf("authors = %v", got)
	}
	if a5.Extra.First(archive.KeyExtent) != "12 pages" || a5.Extra.First(keyConference) != "PROLE" {
		t.Errorf("extent/extension fields = %v", a5.Extra)
	}
	if a5.Extra.First(archive.KeyProvenance) != "Automatically imported from  on 2024-01-15 10:00:00 (GMT)" {
		t.Errorf("provenance = %q", a5.Extra.First(archive.KeyProvenance))
	}
	cp := h.repo.bySistedesID("11705/PROLE/2019/PRELIMINARES/CP")
	if cp.Abstract != "Comité de programa de las PROLE 2019 (Cáceres)." {
		t.Errorf("front matter abstract = %q", cp.Abstract)
	}
	edition := h.repo.bySistedesID("11705/PROLE/2019")
	if edition.Description != "<p>Actas.</p>" || edition.Abstract != "Actas." {
		t.Errorf("edition description/abstract = %q/%q", edition.Description, edition.Abstract)
	}
	if h.repo.count("schema sistedes") != 1 {
		t.Error("metadata schema not ensured")
	}
}

func TestRun_Idempotent(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run(t, Options{}); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	mutations := len(h.repo.calls)

	report, err := h.run(t, Options{})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if report.Created() != 0 || report.PersonsCreated != 0 || report.Registered != 0 {
		t.Errorf("second run created %d entities, %d persons, %d handles", report.Created(), report.PersonsCreated, report.Registered)
	}
	if report.Communities.Found != 5 || report.Collections.Found != 4 || report.Items.Found != 4 {
		t.Errorf("second run found %+v %+v %+v", report.Communities, report.Collections, report.Items)
	}
	// only the schema check repeats
	if extra := h.repo.calls[mutations:]; len(extra) != 1 || extra[0] != "schema sistedes" {
		t.Errorf("second run mutated the repository: %v", extra)
	}
}

func TestRun_DeterministicIdentifiers(t *testing.T) {
	var runs [2][]string
	for i := range runs {
		h := newHarness(t)
		if _, err := h.run(t, Options{}); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		runs[i] = h.recorder.identifiers(journal.OutcomeCreated)
	}
	if !reflect.DeepEqual(runs[0], runs[1]) {
		t.Errorf("identifiers differ between runs:\n%v\n%v", runs[0], runs[1])
	}
}

func TestRun_DryRun(t *testing.T) {
	live := newHarness(t)
	liveReport, err := live.run(t, Options{})
	if err != nil {
		t.Fatalf("live Run() error = %v", err)
	}

	dry := newHarness(t)
	report, err := dry.run(t, Options{DryRun: true})
	if err != nil {
		t.Fatalf("dry Run() error = %v", err)
	}
	if len(dry.repo.calls) != 0 {
		t.Errorf("dry run mutated the repository: %v", dry.repo.calls)
	}
	if len(dry.registrar.handles) != 0 || report.Registered != 0 {
		t.Errorf("dry run registered handles: %v", dry.registrar.handles)
	}
	if report.Created() != 0 || report.Communities.Planned != 5 || report.Collections.Planned != 4 || report.Items.Planned != 4 {
		t.Errorf("dry run counts = %+v %+v %+v", report.Communities, report.Collections, report.Items)
	}
	if !reflect.DeepEqual(report.Decisions, liveReport.Decisions) {
		t.Errorf("dry run decisions = %v, live = %v", report.Decisions, liveReport.Decisions)
	}
	if len(dry.recorder.decisions) != len(live.recorder.decisions) {
		t.Errorf("journaled %d decisions, live run %d", len(dry.recorder.decisions), len(live.recorder.decisions))
	}
	for i, d := range dry.recorder.decisions {
		if l := live.recorder.decisions[i]; d.Mention != l.Mention || d.Tier != l.Tier || d.Assigned != l.Assigned {
			t.Errorf("decision %d = %+v, live %+v", i, d, l)
		}
	}
}

func TestRun_Filters(t *testing.T) {
	h := newHarness(t)
	report, err := h.run(t, Options{Prefix: "99999", Conferences: []string{"prole"}, StartYear: 2019, EndYear: 2019})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if h.repo.bySistedesID("99999/JISBD") != nil {
		t.Error("JISBD migrated despite the conference filter")
	}
	if h.repo.bySistedesID("99999/PROLE/2019") == nil {
		t.Error("PROLE 2019 not migrated")
	}
	if len(report.SkippedEditions) != 0 {
		t.Errorf("editions outside the year range reported as skipped: %v", report.SkippedEditions)
	}
}

func TestRun_CreateFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.repo.failCreate = "11705/PROLE"
	_, err := h.run(t, Options{})

	var me *Error
	if !errors.As(err, &me) || me.Stage != StageCreate || me.Identifier != "11705/PROLE" {
		t.Fatalf("Run() error = %v, want create failure of 11705/PROLE", err)
	}
	if h.repo.bySistedesID("11705/PROLE/2019") != nil {
		t.Error("run continued after a failed create")
	}
}

func TestRun_RegistrationFailureAborts(t *testing.T) {
	h := newHarness(t)
	cause := errors.New("handle server down")
	h.registrar.err = cause
	_, err := h.run(t, Options{})
	if !errors.Is(err, cause) || !IsMigrationError(err) {
		t.Fatalf("Run() error = %v, want wrapped registration failure", err)
	}
	var me *Error
	if errors.As(err, &me) && me.Stage != StageRegister {
		t.Errorf("stage = %s, want %s", me.Stage, StageRegister)
	}
}

func TestRun_SchemaFailureContinues(t *testing.T) {
	h := newHarness(t)
	h.repo.schemaErr = errors.New("forbidden")
	if _, err := h.run(t, Options{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	a5 := h.repo.bySistedesID("11705/PROLE/2019/005")
	if a5 == nil || a5.Extra.Has(keyConference, "PROLE") {
		t.Errorf("extension fields written without a schema: %+v", a5)
	}
}

func TestRun_InteractiveNeedsDisambiguator(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, Options{Interactive: true})
	if !errors.Is(err, ErrInteractiveUnavailable) {
		t.Errorf("Run() error = %v, want ErrInteractiveUnavailable", err)
	}
}

func TestRun_InteractiveOperatorChoice(t *testing.T) {
	h := newHarness(t)
	h.repo.persons = []archive.Person{{ID: "p-1", GivenName: "Juan", FamilyName: "Pérez Gómez"}}
	var asked []string
	pick := identity.DisambiguatorFunc(func(_ context.Context, a identity.Author, candidates []archive.Person) (int, error) {
		asked = append(asked, a.FullName())
		return 1, nil
	})
	report, err := h.run(t, Options{Interactive: true, Conferences: []string{"PROLE"}}, WithDisambiguator(pick))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !reflect.DeepEqual(asked, []string{"Juan Pérez"}) {
		t.Errorf("operator asked about %v", asked)
	}
	if report.Decisions[identity.TierManual] != 1 {
		t.Errorf("decisions = %v", report.Decisions)
	}
	if h.repo.count("relate 2 11705/PROLE/2019/005 p-1") != 1 {
		t.Errorf("chosen person not related: %v", h.repo.calls)
	}
	if h.repo.count("patch person p-1") != 1 {
		t.Error("chosen person not updated with the new name variant")
	}
}

func TestRun_Documents(t *testing.T) {
	h := newHarness(t)
	h.src.bulletins = []source.Bulletin{
		{Link: "https://sistedes.es/b5", Title: "Boletín nº 5 - junio 2020", Date: time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC), Handle: "11705/BOLETINES/005", DocumentURL: "https://sistedes.es/b5.pdf"},
		{Title: "Boletín sin handle"},
	}
	h.src.seminars = []source.Seminar{{
		Link: "https://sistedes.es/s1", Title: "Modelos", Summary: "<p>Charla</p>", Bio: "<p>Bio</p>",
		Speakers: []source.AuthorMention{{Name: "Ana Gil", Affiliation: "UMA"}},
		Date:     time.Date(2021, 3, 2, 16, 0, 0, 0, time.UTC), Handle: "11705/SEMINARIOS/2021/001",
	}}
	video, err := h.docs.write("grabacion-video.mp4")
	if err != nil {
		t.Fatal(err)
	}
	slides, err := h.docs.write("transparencias.pdf")
	if err != nil {
		t.Fatal(err)
	}
	h.docs.media = map[string][]doccache.Document{"11705/SEMINARIOS/2021/001": {
		{Path: video, Name: "grabacion-video.mp4"},
		{Path: slides, Name: "transparencias.pdf"},
	}}

	if _, err := h.run(t, Options{MigrateDocuments: true, Conferences: []string{"NONE"}}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, want := range []string{
		"template 11705/SISTEDES/SEMINARIOS",
		"template 11705/SISTEDES/BOLETINES",
		"create item 11705/BOLETINES/005",
		"create item 11705/SEMINARIOS/2021/001",
		"relate 3 11705/SEMINARIOS/2021/001 ",
		"bundle 11705/SEMINARIOS/2021/001 ORIGINAL",
		"bundle 11705/SEMINARIOS/2021/001 OTHER",
		"bundle 11705/BOLETINES/005 ORIGINAL",
	} {
		if h.repo.count(want) != 1 {
			t.Errorf("missing call %q in %v", want, h.repo.calls)
		}
	}
	b := h.repo.bySistedesID("11705/BOLETINES/005")
	if b.Abstract != "Boletín de Sistedes. Junio de 2020." || b.Extra.First(archive.KeyIsPartOf) != bulletinsSeries {
		t.Errorf("bulletin = %+v", b)
	}

	// a second run neither recreates templates nor items
	before := len(h.repo.calls)
	if _, err := h.run(t, Options{MigrateDocuments: true, Conferences: []string{"NONE"}}); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if extra := h.repo.calls[before:]; len(extra) != 1 {
		t.Errorf("second run mutated the repository: %v", extra)
	}
}
