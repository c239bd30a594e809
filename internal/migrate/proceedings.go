package migrate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sistedes/dspace-migrator/internal/archive"
	"github.com/sistedes/dspace-migrator/internal/source"
)

const (
	preliminariesTitle    = "Preliminares"
	preliminariesAbstract = "Preliminares de las Actas de las %s. Los preliminares de las actas incluyen información adicional sobre las jornadas, tales como la presentación de las jornadas, los comités participantes, las conferencias invitadas, o los agradecimientos, entre otras secciones."
	articlesTitle         = "Artículos"
	articlesAbstract      = "Artículos publicados en las %s."
	alreadyPublished      = "Already published paper. See document contents for DOI."
	allRightsReserved     = "All rights reserved to their respective owners"
	publisher             = "Sistedes"
)

func (o *Orchestrator) conferences(ctx context.Context, prefix string) error {
	confs, err := o.src.Conferences(ctx)
	if err != nil {
		return fail(StageSource, "", err)
	}
	for _, c := range confs {
		if !o.opts.IncludesConference(c.Acronym) {
			o.logger.Debug("conference not selected", "acronym", c.Acronym)
			continue
		}
		if err := o.conference(ctx, prefix, c); err != nil {
			return err
		}
	}
	return nil
}

// conference migrates the selected editions of c. Its community is only
// looked up once an edition with articles needs it.
func (o *Orchestrator) conference(ctx context.Context, prefix string, c source.Conference) error {
	id := join(prefix, c.Acronym)
	editions, err := o.src.Editions(ctx, c)
	if err != nil {
		return fail(StageSource, id, err)
	}

	var community *archive.Entity
	for _, e := range editions {
		if !o.opts.IncludesYear(e.Year) {
			continue
		}
		editionID := join(id, strconv.Itoa(e.Year))
		n, err := o.src.CountArticles(ctx, e)
		if err != nil {
			return fail(StageSource, editionID, err)
		}
		if n == 0 {
			o.logger.Warn("skipping edition without articles", "id", editionID, "title", e.Title)
			o.skip(editionID, e.Title)
			continue
		}

		if community == nil {
			desc := strings.TrimSpace(c.Description)
			comm, err := o.community(ctx, nil, archive.Entity{
				SistedesID:  id,
				Title:       c.Title,
				Description: desc,
				Abstract:    source.FirstParagraph(desc),
			})
			if err != nil {
				return err
			}
			community = &comm
		}
		if err := o.edition(ctx, *community, e); err != nil {
			return err
		}
	}
	return nil
}

// edition migrates e into a sub-community of its conference: one
// collection per track with articles, a preliminaries collection for the
// tracks without, and an articles collection for articles outside any
// track.
func (o *Orchestrator) edition(ctx context.Context, conf archive.Entity, e source.Edition) error {
	desc := editionDescription(e.Description)
	comm, err := o.community(ctx, &conf, archive.Entity{
		SistedesID:  join(conf.SistedesID, strconv.Itoa(e.Year)),
		Title:       e.Title,
		Description: desc,
		Abstract:    source.FirstParagraph(desc),
		Date:        e.Date,
	})
	if err != nil {
		return err
	}

	tracks, err := o.src.Tracks(ctx, e)
	if err != nil {
		return fail(StageSource, comm.SistedesID, err)
	}

	if len(tracks) == 0 || len(e.ArticleURLs) > 0 {
		text := fmt.Sprintf(articlesAbstract, e.ProceedingsName())
		coll, err := o.collection(ctx, comm, archive.Entity{
			SistedesID:  join(comm.SistedesID, segmentArticles),
			Title:       articlesTitle,
			Description: text,
			Abstract:    text,
			Date:        e.Date,
		})
		if err != nil {
			return err
		}
		if err := o.articles(ctx, e, coll, e.Node); err != nil {
			return err
		}
	}

	var (
		prelim      *archive.Entity
		trackIDs    = suffixes{}
		frontMatter = suffixes{}
	)
	for _, t := range tracks {
		if len(t.ArticleURLs) == 0 {
			if prelim == nil {
				text := fmt.Sprintf(preliminariesAbstract, e.Title)
				p, err := o.collection(ctx, comm, archive.Entity{
					SistedesID:  join(comm.SistedesID, segmentPreliminaries),
					Title:       preliminariesTitle,
					Description: text,
					Abstract:    text,
					Date:        e.Date,
				})
				if err != nil {
					return err
				}
				prelim = &p
			}
			if err := o.frontMatter(ctx, e, *prelim, t, frontMatter.unique(PreliminariesSuffix(t.Title))); err != nil {
				return err
			}
			continue
		}

		title := TrackTitle(t.Title)
		if title == "" {
			title = strings.TrimSpace(t.Title)
		}
		coll, err := o.collection(ctx, comm, archive.Entity{
			SistedesID:  join(comm.SistedesID, trackIDs.unique(TrackSuffix(t.Title))),
			Title:       title,
			Description: strings.TrimSpace(t.Description),
			Abstract:    source.FirstParagraph(t.Description),
			Date:        e.Date,
		})
		if err != nil {
			return err
		}
		if err := o.articles(ctx, e, coll, t.Node); err != nil {
			return err
		}
	}
	return nil
}

// proceedingsMetadata is shared by every item of an edition.
func (o *Orchestrator) proceedingsMetadata(e source.Edition) archive.Metadata {
	md := make(archive.Metadata)
	md.Set(archive.KeyIsPartOf, e.ProceedingsName())
	if o.extended {
		md.Set(keyConference, e.Conference)
		md.Set(keyEdition, e.Title)
		md.Set(keyEditionYear, strconv.Itoa(e.Year))
		if !e.Date.IsZero() {
			md.Set(keyEditionDate, e.Date.Format("2006-01-02"))
		}
		md.Set(keyProceedings, e.ProceedingsName())
	}
	return md
}

func (o *Orchestrator) provenance(link string) string {
	return fmt.Sprintf("Automatically imported from %s on %s", link, o.now().UTC().Format("2006-01-02 15:04:05 (GMT)"))
}

// applyLicense records the rights of an article.
func (o *Orchestrator) applyLicense(md archive.Metadata, id string, a source.Article) {
	switch a.License {
	case source.LicenseCCBY, source.LicenseCCBYNCND:
		md.Set(archive.KeyRights, string(a.License))
		md.Set(archive.KeyRightsURI, a.License.URL())
	case source.LicensePublished:
		md.Set(archive.KeyRights, string(source.LicenseCCBYNCND))
		md.Set(archive.KeyRightsURI, source.LicenseCCBYNCND.URL())
		md.Set(archive.KeyIsFormatOf, alreadyPublished)
	case source.LicenseRestricted:
		md.Set(archive.KeyRights, allRightsReserved)
		o.logger.Warn("article has a restricted license", "id", id, "link", a.Link)
	default:
		o.logger.Warn("article has an unexpected license", "id", id, "license", a.RawLicense, "link", a.Link)
	}
}

func (o *Orchestrator) articles(ctx context.Context, e source.Edition, coll archive.Entity, n source.Node) error {
	list, err := o.src.Articles(ctx, n)
	if err != nil {
		return fail(StageSource, coll.SistedesID, err)
	}
	for _, a := range list {
		if err := o.article(ctx, e, coll, a); err != nil {
			return err
		}
	}
	return nil
}

// article creates the item of a paper, links its authors and uploads its
// document. Items already in the repository are left untouched.
func (o *Orchestrator) article(ctx context.Context, e source.Edition, coll archive.Entity, a source.Article) error {
	id, fromSource := articleIdentifier(coll.SistedesID, a)
	if !fromSource {
		o.logger.Warn("article has no handle, deriving identifier", "id", id, "link", a.Link)
	}
	abstract := strings.TrimSpace(a.Abstract)
	if abstract == "" {
		abstract = source.StripTags(a.Excerpt)
	}
	want := archive.Entity{
		Kind:       archive.KindItem,
		SistedesID: id,
		Title:      a.Title,
		Abstract:   abstract,
		Date:       e.Date,
		EntityType: archive.TypePublication,
	}
	existing, err := o.findItem(ctx, coll, want)
	if err != nil || existing != nil {
		return err
	}

	authors := o.splitAuthors(a.Authors)
	md := o.proceedingsMetadata(e)
	md.Set(archive.KeySubject, a.Keywords...)
	md.Set(archive.KeyAuthor, authorVariants(authors)...)
	md.Set(archive.KeyProvenance, o.provenance(a.Link))
	o.applyLicense(md, id, a)

	doc := o.pdf(ctx, id, a.DocumentURL)
	if doc != nil && doc.Pages > 0 {
		md.Set(archive.KeyExtent, pages(doc.Pages))
	}
	want.Extra = md

	item, err := o.create(ctx, want, func(en *archive.Entity) error {
		return o.repo.CreateItem(ctx, coll.ID, en)
	})
	if err != nil {
		return err
	}

	rel := archive.RelationPaper
	if a.IsAbstract {
		rel = archive.RelationAbstract
	}
	if err := o.linkAuthors(ctx, item, authors, rel); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	return o.upload(ctx, item, archive.BundleOriginal, a.License == source.LicenseRestricted, *doc)
}

// frontMatter publishes an empty track of e as a preliminaries item whose
// content is kept as an HTML file.
func (o *Orchestrator) frontMatter(ctx context.Context, e source.Edition, prelim archive.Entity, t source.Track, suffix string) error {
	fm := describeFrontMatter(t.Title, e.Title, e.ProceedingsName())
	md := o.proceedingsMetadata(e)
	md.Set(archive.KeyRights, string(source.LicenseCCBYNCND))
	md.Set(archive.KeyRightsURI, source.LicenseCCBYNCND.URL())
	md.Set(archive.KeyPublisher, publisher)
	md.Set(archive.KeyProvenance, o.provenance(t.Link))

	want := archive.Entity{
		Kind:       archive.KindItem,
		SistedesID: join(prelim.SistedesID, suffix),
		Title:      fm.Title,
		Abstract:   fm.Abstract,
		Date:       e.Date,
		EntityType: archive.TypePublication,
		Extra:      md,
	}
	existing, err := o.findItem(ctx, prelim, want)
	if err != nil || existing != nil {
		return err
	}
	item, err := o.create(ctx, want, func(en *archive.Entity) error {
		return o.repo.CreateItem(ctx, prelim.ID, en)
	})
	if err != nil || o.opts.DryRun || o.docs == nil {
		return err
	}

	content := cleanFrontMatter(t.Description)
	if content == "" {
		o.logger.Info("preliminaries without content", "id", item.SistedesID)
		return nil
	}
	doc, err := o.docs.FrontMatter(item.SistedesID, fm.Title, content)
	if err != nil {
		return fail(StageFile, item.SistedesID, err)
	}
	return o.upload(ctx, item, archive.BundleOther, false, doc)
}
