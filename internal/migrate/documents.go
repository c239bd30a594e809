package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/sistedes/dspace-migrator/internal/archive"
	"github.com/sistedes/dspace-migrator/internal/doccache"
	"github.com/sistedes/dspace-migrator/internal/source"
)

const (
	seminarsTitle     = "Seminarios Sistedes"
	seminarsAbstract  = "Los Seminarios Sistedes son charlas sobre temas de interés para nuestra comunidad científica, impartidos por destacados miembros de la misma y/o reconocidos expertos en las materias objeto de los mismos."
	bulletinsTitle    = "Boletines de prensa"
	bulletinsSeries   = "Boletines Sistedes"
	bulletinsAbstract = "Boletines de prensa de Sistedes, con las noticias de la sociedad y de sus jornadas."
)

// pdf returns the cached document of an item, downloading it when
// needed. Missing or unreadable documents are reported and yield nil so
// the item is still migrated. Dry runs fetch nothing.
func (o *Orchestrator) pdf(ctx context.Context, id, rawURL string) *doccache.Document {
	if o.docs == nil || o.opts.DryRun {
		return nil
	}
	if strings.TrimSpace(rawURL) == "" {
		o.logger.Info("no document to upload", "id", id)
		o.report.MissingFiles = append(o.report.MissingFiles, id)
		return nil
	}
	doc, err := o.docs.PDF(ctx, id, rawURL)
	if err != nil {
		o.logger.Error("unable to retrieve document", "id", id, "url", rawURL, "error", err)
		o.report.MissingFiles = append(o.report.MissingFiles, id)
		return nil
	}
	return &doc
}

// upload stores docs in a new bundle of item. Restricted files lose the
// anonymous read policy the repository grants by default.
func (o *Orchestrator) upload(ctx context.Context, item archive.Entity, bundle string, restricted bool, docs ...doccache.Document) error {
	if len(docs) == 0 {
		return nil
	}
	bundleID, err := o.repo.CreateBundle(ctx, item.ID, bundle)
	if err != nil {
		return fail(StageFile, item.SistedesID, err)
	}
	for _, d := range docs {
		if err := o.uploadOne(ctx, item, bundleID, d, restricted); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) uploadOne(ctx context.Context, item archive.Entity, bundleID string, d doccache.Document, restricted bool) error {
	f, err := d.Open()
	if err != nil {
		return fail(StageFile, item.SistedesID, err)
	}
	defer f.Close()

	bitstreamID, err := o.repo.UploadBitstream(ctx, bundleID, d.Name, f)
	if err != nil {
		return fail(StageFile, item.SistedesID, err)
	}
	o.report.Files++
	o.logger.Debug("uploaded file", "id", item.SistedesID, "file", d.Name)
	if !restricted {
		return nil
	}
	if err := o.repo.RemoveFirstPolicy(ctx, bitstreamID); err != nil {
		return fail(StageFile, item.SistedesID, err)
	}
	return nil
}

// seriesCollection finds or creates a collection of root, giving a new
// one an item template.
func (o *Orchestrator) seriesCollection(ctx context.Context, root, want archive.Entity, template archive.Metadata) (archive.Entity, error) {
	coll, created, err := o.findOrCreateCollection(ctx, root, want)
	if err != nil || !created {
		return coll, err
	}
	if err := o.repo.CreateItemTemplate(ctx, coll.ID, template); err != nil {
		return coll, fail(StageCreate, coll.SistedesID, err)
	}
	return coll, nil
}

func pages(n int) string {
	return fmt.Sprintf("%d pages", n)
}

func (o *Orchestrator) bulletins(ctx context.Context, root archive.Entity) error {
	list, err := o.src.Bulletins(ctx)
	if err != nil {
		return fail(StageSource, join(root.SistedesID, segmentBulletins), err)
	}

	template := make(archive.Metadata)
	template.Set(archive.KeyRights, string(source.LicenseCCBYNCND))
	template.Set(archive.KeyRightsURI, source.LicenseCCBYNCND.URL())
	template.Set(archive.KeyIsPartOf, bulletinsSeries)
	template.Set(archive.KeyPublisher, publisher)

	coll, err := o.seriesCollection(ctx, root, archive.Entity{
		SistedesID:  join(root.SistedesID, segmentBulletins),
		Title:       bulletinsTitle,
		Description: bulletinsAbstract,
		Abstract:    bulletinsAbstract,
	}, template)
	if err != nil {
		return err
	}

	for _, b := range list {
		if strings.TrimSpace(b.Handle) == "" {
			o.logger.Warn("bulletin without handle, skipping", "title", b.Title, "link", b.Link)
			continue
		}
		md := template.Clone()
		md.Set(archive.KeyProvenance, o.provenance(b.Link))
		want := archive.Entity{
			Kind:       archive.KindItem,
			SistedesID: strings.TrimSpace(b.Handle),
			Title:      b.Title,
			Abstract:   b.Description(),
			Date:       b.Date,
			EntityType: archive.TypePublication,
			Extra:      md,
		}
		existing, err := o.findItem(ctx, coll, want)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		doc := o.pdf(ctx, want.SistedesID, b.DocumentURL)
		if doc != nil && doc.Pages > 0 {
			want.Extra.Set(archive.KeyExtent, pages(doc.Pages))
		}
		item, err := o.create(ctx, want, func(en *archive.Entity) error {
			return o.repo.CreateItem(ctx, coll.ID, en)
		})
		if err != nil {
			return err
		}
		if doc != nil {
			if err := o.upload(ctx, item, archive.BundleOriginal, false, *doc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) seminars(ctx context.Context, root archive.Entity) error {
	list, err := o.src.Seminars(ctx)
	if err != nil {
		return fail(StageSource, join(root.SistedesID, segmentSeminars), err)
	}

	template := make(archive.Metadata)
	template.Set(archive.KeyRights, string(source.LicenseCCBYNCND))
	template.Set(archive.KeyRightsURI, source.LicenseCCBYNCND.URL())
	template.Set(archive.KeyIsPartOf, seminarsTitle)
	template.Set(archive.KeyPublisher, publisher)

	coll, err := o.seriesCollection(ctx, root, archive.Entity{
		SistedesID:  join(root.SistedesID, segmentSeminars),
		Title:       seminarsTitle,
		Description: seminarsAbstract,
		Abstract:    seminarsAbstract,
	}, template)
	if err != nil {
		return err
	}

	for _, s := range list {
		if strings.TrimSpace(s.Handle) == "" {
			o.logger.Warn("seminar without handle, skipping", "title", s.Title, "link", s.Link)
			continue
		}
		authors := o.splitAuthors(s.Speakers)
		md := template.Clone()
		md.Set(archive.KeyBio, s.Bio)
		md.Set(archive.KeyAuthor, authorVariants(authors)...)
		md.Set(archive.KeyProvenance, o.provenance(s.Link))
		want := archive.Entity{
			Kind:       archive.KindItem,
			SistedesID: strings.TrimSpace(s.Handle),
			Title:      s.Title,
			Abstract:   s.Summary,
			Date:       s.Date,
			EntityType: archive.TypePublication,
			Extra:      md,
		}
		existing, err := o.findItem(ctx, coll, want)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		item, err := o.create(ctx, want, func(en *archive.Entity) error {
			return o.repo.CreateItem(ctx, coll.ID, en)
		})
		if err != nil {
			return err
		}
		if err := o.linkAuthors(ctx, item, authors, archive.RelationSeminar); err != nil {
			return err
		}
		if err := o.seminarMedia(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// seminarMedia uploads the recording of a seminar to ORIGINAL and its
// other material to OTHER.
func (o *Orchestrator) seminarMedia(ctx context.Context, item archive.Entity) error {
	if o.docs == nil || o.opts.DryRun {
		return nil
	}
	files, err := o.docs.Media(item.SistedesID)
	if err != nil {
		return fail(StageFile, item.SistedesID, err)
	}
	if len(files) == 0 {
		o.logger.Error("no media found for seminar", "id", item.SistedesID)
		o.report.MissingFiles = append(o.report.MissingFiles, item.SistedesID)
		return nil
	}
	var videos, other []doccache.Document
	for _, f := range files {
		if doccache.IsVideo(f.Name) {
			videos = append(videos, f)
		} else {
			other = append(other, f)
		}
	}
	if err := o.upload(ctx, item, archive.BundleOriginal, false, videos...); err != nil {
		return err
	}
	return o.upload(ctx, item, archive.BundleOther, false, other...)
}
