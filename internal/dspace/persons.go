package dspace

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/sistedes/dspace-migrator/internal/archive"
	"github.com/sistedes/dspace-migrator/internal/identity"
)

// SearchPersons runs a free-text discovery query restricted to person
// items, best matches first.
func (c *Client) SearchPersons(ctx context.Context, query string) ([]archive.Person, error) {
	query = strings.TrimSpace(strings.ReplaceAll(query, ":", ""))
	if query == "" {
		return nil, nil
	}
	q := url.Values{
		"configuration": {"administrativeView"},
		"dsoType":       {"item"},
		"sort":          {"score,DESC"},
		"f.entityType":  {archive.TypePerson + ",equals"},
		"query":         {query},
	}
	found, err := c.search(ctx, "search persons", q)
	if err != nil {
		return nil, err
	}
	out := make([]archive.Person, 0, len(found))
	for _, obj := range found {
		out = append(out, archive.PersonFromMetadata(obj.ID, fromWire(obj.Metadata)))
	}
	return out, nil
}

// CreatePerson creates p in the authors collection and returns it with its
// repository ID.
func (c *Client) CreatePerson(ctx context.Context, collectionID string, p archive.Person) (archive.Person, error) {
	body, err := jsonBody(newItem(p.Metadata()))
	if err != nil {
		return p, err
	}
	var created dso
	if _, err := c.do(ctx, request{
		op:          "create person",
		method:      http.MethodPost,
		path:        "/api/core/items",
		query:       url.Values{"owningCollection": {collectionID}},
		body:        body,
		contentType: "application/json",
		expect:      http.StatusCreated,
		out:         &created,
	}); err != nil {
		return p, err
	}
	if err := created.validate(); err != nil {
		return p, err
	}
	p.ID = created.ID
	c.logger.Debug("created person", "id", p.ID, "name", p.Variant())
	return p, nil
}

// PatchPerson applies a merge plan to the stored person record.
func (c *Client) PatchPerson(ctx context.Context, plan identity.MergePlan) error {
	ops := patchOps(plan)
	if len(ops) == 0 {
		return nil
	}
	body, err := jsonBody(ops)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, request{
		op:          "update person",
		method:      http.MethodPatch,
		path:        "/api/core/items/" + url.PathEscape(plan.PersonID),
		body:        body,
		contentType: "application/json-patch+json",
		expect:      http.StatusOK,
	})
	return err
}

// patchOps translates plan changes, in order, into JSON Patch operations.
// Appends use the "-" index; a name replacement overwrites the name fields
// and records the demoted name as a variant.
func patchOps(plan identity.MergePlan) []patchOp {
	appendValue := func(key, v string) patchOp {
		return patchOp{Op: "add", Path: "/metadata/" + key + "/-", Value: metadataValue{Value: v, Confidence: -1}}
	}
	setValue := func(key, v string) patchOp {
		return patchOp{Op: "add", Path: "/metadata/" + key, Value: []metadataValue{{Value: v, Confidence: -1}}}
	}

	var ops []patchOp
	for _, ch := range plan.Changes {
		switch ch.Kind {
		case identity.ChangeAddEmail:
			ops = append(ops, appendValue(archive.KeyEmail, ch.Value))
		case identity.ChangeAddAffiliation:
			ops = append(ops, appendValue(archive.KeyAffiliation, ch.Value))
		case identity.ChangeAddVariant:
			ops = append(ops, appendValue(archive.KeyNameVariant, ch.Value))
		case identity.ChangeReplaceName:
			ops = append(ops,
				setValue(archive.KeyGivenName, ch.Given),
				setValue(archive.KeyFamilyName, ch.Family),
				setValue(archive.KeyTitle, archive.VariantOf(ch.Given, ch.Family)),
				appendValue(archive.KeyNameVariant, ch.Value),
			)
		}
	}
	return ops
}
