package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/sistedes/dspace-migrator/internal/archive"
	"github.com/sistedes/dspace-migrator/internal/identity"
	"github.com/sistedes/dspace-migrator/internal/journal"
	"github.com/sistedes/dspace-migrator/internal/names"
	"github.com/sistedes/dspace-migrator/internal/source"
)

// directory layers the persons created or updated during the run over
// the repository's search results. The repository index may lag behind
// writes, and a dry run writes nothing at all.
type directory struct {
	repo    identity.Directory
	known   map[string]archive.Person
	order   []string
	planned int
}

func newDirectory(repo identity.Directory) *directory {
	return &directory{repo: repo, known: make(map[string]archive.Person)}
}

func (d *directory) SearchPersons(ctx context.Context, query string) ([]archive.Person, error) {
	found, err := d.repo.SearchPersons(ctx, query)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(found))
	out := make([]archive.Person, 0, len(found))
	for _, p := range found {
		if k, ok := d.known[p.ID]; ok {
			p = k
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	for _, id := range d.order {
		if p := d.known[id]; !seen[id] && personMatches(p, query) {
			out = append(out, p)
		}
	}
	return out, nil
}

// remember stores p as the current state of a person. Persons that were
// only planned get a placeholder ID.
func (d *directory) remember(p archive.Person) archive.Person {
	if p.ID == "" {
		d.planned++
		p.ID = fmt.Sprintf("planned-%d", d.planned)
	}
	if _, ok := d.known[p.ID]; !ok {
		d.order = append(d.order, p.ID)
	}
	d.known[p.ID] = p
	return p
}

// personMatches approximates the repository's free-text person search:
// an email query matches a recorded email, a name query matches when its
// words appear in the canonical name or a variant.
func personMatches(p archive.Person, query string) bool {
	query = strings.TrimSpace(query)
	if strings.Contains(query, "@") {
		return p.HasEmail(query)
	}
	key := names.Key(query)
	if key == "" {
		return false
	}
	if strings.Contains(names.Key(p.FullName()), key) {
		return true
	}
	for _, v := range p.NameVariants {
		given, family := archive.ParseVariant(v)
		if strings.Contains(names.Key(given+" "+family), key) {
			return true
		}
	}
	return false
}

// splitAuthors normalizes the author mentions of an item. A name that
// cannot be split is kept whole as the family name.
func (o *Orchestrator) splitAuthors(mentions []source.AuthorMention) []identity.Author {
	out := make([]identity.Author, 0, len(mentions))
	for _, m := range mentions {
		s, err := o.splitter.Split(m.Name, m.Email)
		if err != nil {
			normalized := names.Normalize(m.Name)
			if normalized == "" {
				o.logger.Warn("ignoring author without name", "email", m.Email)
				continue
			}
			o.logger.Warn("unable to split author name", "name", m.Name, "error", err)
			s = names.Split{FullName: normalized, Family: normalized}
		}
		out = append(out, identity.Author{
			Given:       s.Given,
			Family:      s.Family,
			Email:       strings.TrimSpace(m.Email),
			Affiliation: strings.TrimSpace(m.Affiliation),
		})
	}
	return out
}

func authorVariants(authors []identity.Author) []string {
	out := make([]string, 0, len(authors))
	for _, a := range authors {
		out = append(out, a.Variant())
	}
	return out
}

// linkAuthors resolves every author of item and relates the resulting
// persons to it in order.
func (o *Orchestrator) linkAuthors(ctx context.Context, item archive.Entity, authors []identity.Author, rel archive.RelationType) error {
	for _, a := range authors {
		res, err := o.resolver.Resolve(ctx, a)
		if err != nil {
			return fail(StageAuthor, item.SistedesID, err)
		}
		o.report.Decisions[res.Tier]++

		person, err := o.settle(ctx, a, res)
		if err != nil {
			return fail(StageAuthor, item.SistedesID, err)
		}
		o.decision(item, a, res, person)

		if o.opts.DryRun {
			continue
		}
		if err := o.repo.CreateRelationship(ctx, rel, item.ID, person.ID); err != nil {
			return fail(StageAuthor, item.SistedesID, err)
		}
	}
	return nil
}

// settle turns a resolution into a person: the matched record with the
// mention merged in, or a new record.
func (o *Orchestrator) settle(ctx context.Context, a identity.Author, res identity.MatchResult) (archive.Person, error) {
	if res.Assigned() {
		plan := identity.PlanMerge(*res.Person, a)
		if plan.Empty() {
			return *res.Person, nil
		}
		if !o.opts.DryRun {
			if err := o.repo.PatchPerson(ctx, plan); err != nil {
				return archive.Person{}, err
			}
		}
		o.logger.Info("updated person", "id", plan.PersonID, "name", res.Person.FullName(), "changes", len(plan.Changes))
		o.report.PersonsUpdated++
		return o.dir.remember(plan.Apply(*res.Person)), nil
	}

	p := a.NewPerson()
	if !o.opts.DryRun {
		created, err := o.repo.CreatePerson(ctx, o.authors.ID, p)
		if err != nil {
			return archive.Person{}, err
		}
		p = created
	}
	o.logger.Info("created person", "id", p.ID, "name", p.FullName())
	o.report.PersonsCreated++
	return o.dir.remember(p), nil
}

func (o *Orchestrator) decision(item archive.Entity, a identity.Author, res identity.MatchResult, p archive.Person) {
	o.logger.Debug("author decision",
		"item", item.SistedesID,
		"author", a.FullName(),
		"tier", res.Tier,
		"distance", fmt.Sprintf("%.3f", res.Distance),
		"person", p.ID)
	if o.recorder == nil {
		return
	}
	err := o.recorder.Decision(journal.Decision{
		ItemIdentifier: item.SistedesID,
		Mention:        a.FullName(),
		Email:          a.Email,
		Tier:           string(res.Tier),
		Method:         string(res.Method),
		Distance:       res.Distance,
		PersonID:       p.ID,
		Assigned:       res.Assigned(),
	})
	if err != nil {
		o.logger.Warn("unable to journal author decision", "item", item.SistedesID, "error", err)
	}
}
