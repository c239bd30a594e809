// Package migrate copies the Sistedes digital library into the target
// repository. A run walks the source tree top-down, finding or creating
// one repository entity per source node, resolving authors against the
// person directory and registering a handle for everything it creates.
package migrate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/sistedes/dspace-migrator/internal/archive"
	"github.com/sistedes/dspace-migrator/internal/doccache"
	"github.com/sistedes/dspace-migrator/internal/dspace"
	"github.com/sistedes/dspace-migrator/internal/identity"
	"github.com/sistedes/dspace-migrator/internal/journal"
	"github.com/sistedes/dspace-migrator/internal/names"
	"github.com/sistedes/dspace-migrator/internal/source"
)

// Source is the digital library being migrated.
type Source interface {
	Conferences(ctx context.Context) ([]source.Conference, error)
	Editions(ctx context.Context, c source.Conference) ([]source.Edition, error)
	Tracks(ctx context.Context, e source.Edition) ([]source.Track, error)
	Articles(ctx context.Context, n source.Node) ([]source.Article, error)
	CountArticles(ctx context.Context, e source.Edition) (int, error)
	Bulletins(ctx context.Context) ([]source.Bulletin, error)
	Seminars(ctx context.Context) ([]source.Seminar, error)
}

// Repository is the target repository.
type Repository interface {
	identity.Directory

	Login(ctx context.Context) error
	Site(ctx context.Context) (dspace.Site, error)
	EnsureSchema(ctx context.Context, prefix, namespace string, fields []string) error

	TopCommunities(ctx context.Context) ([]archive.Entity, error)
	SubCommunities(ctx context.Context, communityID string) ([]archive.Entity, error)
	Collections(ctx context.Context, communityID string) ([]archive.Entity, error)
	FindItem(ctx context.Context, collectionID, sistedesID string) (*archive.Entity, error)

	CreateCommunity(ctx context.Context, parentID string, e *archive.Entity) error
	CreateCollection(ctx context.Context, parentID string, e *archive.Entity) error
	CreateItem(ctx context.Context, collectionID string, e *archive.Entity) error
	CreateItemTemplate(ctx context.Context, collectionID string, md archive.Metadata) error

	CreatePerson(ctx context.Context, collectionID string, p archive.Person) (archive.Person, error)
	PatchPerson(ctx context.Context, plan identity.MergePlan) error
	CreateRelationship(ctx context.Context, t archive.RelationType, itemID, personID string) error

	CreateBundle(ctx context.Context, itemID, name string) (string, error)
	UploadBitstream(ctx context.Context, bundleID, filename string, r io.Reader) (string, error)
	RemoveFirstPolicy(ctx context.Context, objectID string) error
}

// Registrar points handles at repository objects.
type Registrar interface {
	Register(ctx context.Context, handle, targetURL string) error
}

// Documents provides the files attached to items.
type Documents interface {
	PDF(ctx context.Context, identifier, rawURL string) (doccache.Document, error)
	FrontMatter(identifier, title, body string) (doccache.Document, error)
	Media(identifier string) ([]doccache.Document, error)
}

// Splitter splits author names.
type Splitter interface {
	Split(fullName, email string) (names.Split, error)
}

// Recorder keeps an audit trail of a run.
type Recorder interface {
	Entity(e journal.Entity) error
	Decision(d journal.Decision) error
}

// Orchestrator runs migrations. A single Orchestrator must not run
// concurrently with itself.
type Orchestrator struct {
	src      Source
	repo     Repository
	splitter Splitter
	opts     Options

	registrar     Registrar
	docs          Documents
	recorder      Recorder
	disambiguator identity.Disambiguator
	weakPolicy    identity.WeakPolicy
	logger        *slog.Logger
	now           func() time.Time

	// per run
	report   *Report
	dir      *directory
	resolver *identity.Resolver
	authors  archive.Entity
	extended bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRegistrar enables handle registration for created entities.
func WithRegistrar(r Registrar) Option {
	return func(o *Orchestrator) { o.registrar = r }
}

// WithDocuments enables file uploads.
func WithDocuments(d Documents) Option {
	return func(o *Orchestrator) { o.docs = d }
}

// WithRecorder journals entity outcomes and author decisions.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithDisambiguator sets who is asked in interactive runs.
func WithDisambiguator(d identity.Disambiguator) Option {
	return func(o *Orchestrator) { o.disambiguator = d }
}

// WithWeakPolicy sets what happens to weak author matches.
func WithWeakPolicy(p identity.WeakPolicy) Option {
	return func(o *Orchestrator) { o.weakPolicy = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the time source used for provenance notes and the
// report.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an orchestrator migrating src into repo.
func New(src Source, repo Repository, splitter Splitter, opts Options, options ...Option) *Orchestrator {
	o := &Orchestrator{
		src:        src,
		repo:       repo,
		splitter:   splitter,
		opts:       opts,
		weakPolicy: identity.WeakAssign,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

const (
	rootTitle       = "Archivo documental de Sistedes"
	rootDescription = "Archivo documental de la Sociedad de Ingeniería de Software y Tecnologías de Desarrollo de Software (Sistedes): actas de las jornadas, seminarios y boletines."
	authorsTitle    = "Autores"
	authorsAbstract = "Todos los autores que han contribuido a las jornadas Sistedes"
)

// Run migrates everything the options select. The report is returned
// even when the run fails, describing what was done before the failure.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	o.report = newReport(o.opts.DryRun, o.now())
	defer func() { o.report.Finished = o.now() }()

	if err := o.opts.Validate(); err != nil {
		return o.report, fail(StageSetup, "", err)
	}
	resolverOpts := []identity.Option{identity.WithWeakPolicy(o.weakPolicy), identity.WithLogger(o.logger)}
	if o.opts.Interactive {
		if o.disambiguator == nil {
			return o.report, fail(StageSetup, "", ErrInteractiveUnavailable)
		}
		resolverOpts = append(resolverOpts, identity.WithDisambiguator(o.disambiguator))
	}
	o.dir = newDirectory(o.repo)
	o.resolver = identity.NewResolver(o.dir, resolverOpts...)

	if err := o.repo.Login(ctx); err != nil {
		return o.report, fail(StageSetup, "", err)
	}
	prefix, err := o.prefix(ctx)
	if err != nil {
		return o.report, fail(StageSetup, "", err)
	}
	o.report.Prefix = prefix
	o.logger.Info("starting migration", "prefix", prefix, "dry_run", o.opts.DryRun, "interactive", o.opts.Interactive)

	o.extended = o.ensureSchema(ctx)

	root, err := o.community(ctx, nil, archive.Entity{
		SistedesID:  join(prefix, segmentSistedes),
		Title:       rootTitle,
		Description: rootDescription,
		Abstract:    rootDescription,
	})
	if err != nil {
		return o.report, err
	}
	o.authors, err = o.collection(ctx, root, archive.Entity{
		SistedesID:  join(root.SistedesID, segmentAuthors),
		Title:       authorsTitle,
		Description: authorsAbstract,
		Abstract:    authorsAbstract,
	})
	if err != nil {
		return o.report, err
	}

	if o.opts.MigrateDocuments {
		if err := o.seminars(ctx, root); err != nil {
			return o.report, err
		}
		if err := o.bulletins(ctx, root); err != nil {
			return o.report, err
		}
	}
	if err := o.conferences(ctx, prefix); err != nil {
		return o.report, err
	}
	o.logger.Info("migration finished", "created", o.report.Created(), "persons_created", o.report.PersonsCreated)
	return o.report, nil
}

func (o *Orchestrator) prefix(ctx context.Context) (string, error) {
	if o.opts.Prefix != "" {
		return o.opts.Prefix, nil
	}
	site, err := o.repo.Site(ctx)
	if err != nil {
		return "", err
	}
	if p := site.HandlePrefix(); p != "" {
		return p, nil
	}
	return "", errors.New("site has no handle prefix; set one explicitly")
}

// Extension fields recorded on proceedings items when the repository
// accepts them.
const (
	schemaPrefix    = "sistedes"
	schemaNamespace = "https://biblioteca.sistedes.es/ns/sistedes"

	keyConference  = schemaPrefix + ".conference.name"
	keyEdition     = schemaPrefix + ".edition.name"
	keyEditionYear = schemaPrefix + ".edition.year"
	keyEditionDate = schemaPrefix + ".edition.date"
	keyProceedings = schemaPrefix + ".proceedings.name"
)

// ensureSchema registers the extension fields. Failure only disables
// them.
func (o *Orchestrator) ensureSchema(ctx context.Context) bool {
	if o.opts.DryRun {
		return false
	}
	fields := []string{"conference.name", "edition.name", "edition.year", "edition.date", "proceedings.name"}
	if err := o.repo.EnsureSchema(ctx, schemaPrefix, schemaNamespace, fields); err != nil {
		o.logger.Warn("metadata schema extensions unavailable", "schema", schemaPrefix, "error", err)
		return false
	}
	return true
}

// community finds or creates a community under parent, a top community
// when parent is nil.
func (o *Orchestrator) community(ctx context.Context, parent *archive.Entity, want archive.Entity) (archive.Entity, error) {
	want.Kind = archive.KindCommunity
	var (
		existing []archive.Entity
		parentID string
		err      error
	)
	switch {
	case parent == nil:
		existing, err = o.repo.TopCommunities(ctx)
	case parent.ID != "":
		parentID = parent.ID
		existing, err = o.repo.SubCommunities(ctx, parentID)
	}
	if err != nil {
		return want, fail(StageFind, want.SistedesID, err)
	}
	e, _, err := o.findOrCreate(ctx, existing, want, func(e *archive.Entity) error {
		return o.repo.CreateCommunity(ctx, parentID, e)
	})
	return e, err
}

// collection finds or creates a collection of community.
func (o *Orchestrator) collection(ctx context.Context, community archive.Entity, want archive.Entity) (archive.Entity, error) {
	e, _, err := o.findOrCreateCollection(ctx, community, want)
	return e, err
}

// findOrCreateCollection also reports whether the collection was created.
func (o *Orchestrator) findOrCreateCollection(ctx context.Context, community archive.Entity, want archive.Entity) (archive.Entity, bool, error) {
	want.Kind = archive.KindCollection
	var existing []archive.Entity
	if community.ID != "" {
		var err error
		if existing, err = o.repo.Collections(ctx, community.ID); err != nil {
			return want, false, fail(StageFind, want.SistedesID, err)
		}
	}
	return o.findOrCreate(ctx, existing, want, func(e *archive.Entity) error {
		return o.repo.CreateCollection(ctx, community.ID, e)
	})
}

// findItem looks want up in collection. Nothing can exist yet in a
// collection that is only planned.
func (o *Orchestrator) findItem(ctx context.Context, collection archive.Entity, want archive.Entity) (*archive.Entity, error) {
	if collection.ID == "" {
		return nil, nil
	}
	found, err := o.repo.FindItem(ctx, collection.ID, want.SistedesID)
	if err != nil {
		return nil, fail(StageFind, want.SistedesID, err)
	}
	if found == nil {
		return nil, nil
	}
	e := o.found(*found, want)
	return &e, nil
}

// findOrCreate reuses the first of existing matching want, or creates
// want. The flag reports an actual creation.
func (o *Orchestrator) findOrCreate(ctx context.Context, existing []archive.Entity, want archive.Entity, create func(*archive.Entity) error) (archive.Entity, bool, error) {
	for _, e := range existing {
		if archive.Matches(e, &want) {
			return o.found(e, want), false, nil
		}
	}
	e, err := o.create(ctx, want, create)
	return e, err == nil && !o.opts.DryRun, err
}

func (o *Orchestrator) found(e, want archive.Entity) archive.Entity {
	e.Kind = want.Kind
	if e.SistedesID == "" {
		e.SistedesID = want.SistedesID
	}
	if e.Date.IsZero() {
		e.Date = want.Date
	}
	o.logger.Debug("found existing entity", "kind", e.Kind, "id", e.SistedesID, "title", e.Title)
	o.report.counts(e.Kind).Found++
	o.record(e, journal.OutcomeFound)
	return e
}

// create creates want unless the run is dry, then registers its handle.
func (o *Orchestrator) create(ctx context.Context, want archive.Entity, create func(*archive.Entity) error) (archive.Entity, error) {
	if o.opts.DryRun {
		o.logger.Info("would create entity", "kind", want.Kind, "id", want.SistedesID, "title", want.Title)
		o.report.counts(want.Kind).Planned++
		o.record(want, journal.OutcomePlanned)
		return want, nil
	}
	if err := create(&want); err != nil {
		return want, fail(StageCreate, want.SistedesID, err)
	}
	o.logger.Info("created entity", "kind", want.Kind, "id", want.SistedesID, "handle", want.Handle, "title", want.Title)
	o.report.counts(want.Kind).Created++
	o.record(want, journal.OutcomeCreated)
	return want, o.register(ctx, want)
}

// register points the sistedes handle at the repository's own handle.
func (o *Orchestrator) register(ctx context.Context, e archive.Entity) error {
	if o.registrar == nil || e.Handle == e.SistedesID {
		return nil
	}
	if e.Handle == "" {
		o.logger.Warn("created entity has no handle, not registering", "id", e.SistedesID)
		return nil
	}
	if err := o.registrar.Register(ctx, e.SistedesID, archive.HandleURL(e.Handle)); err != nil {
		return fail(StageRegister, e.SistedesID, err)
	}
	o.report.Registered++
	return nil
}

func (o *Orchestrator) record(e archive.Entity, outcome string) {
	if o.recorder == nil {
		return
	}
	err := o.recorder.Entity(journal.Entity{
		Identifier: e.SistedesID,
		Kind:       string(e.Kind),
		Title:      e.Title,
		TargetID:   e.ID,
		Outcome:    outcome,
	})
	if err != nil {
		o.logger.Warn("unable to journal entity", "id", e.SistedesID, "error", err)
	}
}

// skip journals an edition left out of the run.
func (o *Orchestrator) skip(identifier, title string) {
	o.report.SkippedEditions = append(o.report.SkippedEditions, identifier)
	o.record(archive.Entity{Kind: archive.KindCommunity, SistedesID: identifier, Title: title}, journal.OutcomeSkipped)
}
