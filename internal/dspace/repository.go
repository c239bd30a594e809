package dspace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sistedes/dspace-migrator/internal/archive"
)

// Site describes the repository root.
type Site struct {
	ID     string
	Name   string
	Handle string
}

// HandlePrefix returns the naming authority of the site handle.
func (s Site) HandlePrefix() string {
	prefix, _, _ := strings.Cut(s.Handle, "/")
	return prefix
}

// Site reads the repository root object.
func (c *Client) Site(ctx context.Context) (Site, error) {
	sites, err := list[site](ctx, c, "sites", "/api/core/sites", "sites")
	if err != nil {
		return Site{}, err
	}
	if len(sites) == 0 {
		return Site{}, fmt.Errorf("dspace sites: %w: no site object", ErrInvalidResponse)
	}
	s := sites[0]
	return Site{ID: s.ID, Name: s.Name, Handle: s.Handle}, nil
}

// list walks every page of a HAL collection and decodes the array embedded
// under key.
func list[T any](ctx context.Context, c *Client, op, path, key string) ([]T, error) {
	var out []T
	for page := 0; ; page++ {
		var p listPage
		q := url.Values{"page": {strconv.Itoa(page)}, "size": {strconv.Itoa(pageSize)}}
		if _, err := c.do(ctx, request{op: op, method: http.MethodGet, path: path, query: q, expect: http.StatusOK, out: &p}); err != nil {
			return nil, err
		}
		if raw, ok := p.Embedded[key]; ok {
			var items []T
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("dspace %s: %w: %v", op, ErrInvalidResponse, err)
			}
			out = append(out, items...)
		}
		if page+1 >= p.Page.TotalPages {
			return out, nil
		}
	}
}

func (c *Client) entities(ctx context.Context, op, path, key string, kind archive.Kind) ([]archive.Entity, error) {
	objs, err := list[dso](ctx, c, op, path, key)
	if err != nil {
		return nil, err
	}
	out := make([]archive.Entity, 0, len(objs))
	for i := range objs {
		if err := objs[i].validate(); err != nil {
			return nil, err
		}
		out = append(out, objs[i].entity(kind))
	}
	return out, nil
}

// TopCommunities lists the communities without a parent.
func (c *Client) TopCommunities(ctx context.Context) ([]archive.Entity, error) {
	return c.entities(ctx, "top communities", "/api/core/communities/search/top", "communities", archive.KindCommunity)
}

// SubCommunities lists the direct sub-communities of a community.
func (c *Client) SubCommunities(ctx context.Context, communityID string) ([]archive.Entity, error) {
	path := fmt.Sprintf("/api/core/communities/%s/subcommunities", url.PathEscape(communityID))
	return c.entities(ctx, "subcommunities", path, "subcommunities", archive.KindCommunity)
}

// Collections lists the collections of a community.
func (c *Client) Collections(ctx context.Context, communityID string) ([]archive.Entity, error) {
	path := fmt.Sprintf("/api/core/communities/%s/collections", url.PathEscape(communityID))
	return c.entities(ctx, "collections", path, "collections", archive.KindCollection)
}

// search runs a discovery query and returns every matching object.
func (c *Client) search(ctx context.Context, op string, q url.Values) ([]dso, error) {
	var out []dso
	for page := 0; ; page++ {
		params := url.Values{}
		for k, v := range q {
			params[k] = v
		}
		params.Set("page", strconv.Itoa(page))
		params.Set("size", strconv.Itoa(pageSize))

		var p searchPage
		if _, err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/api/discover/search/objects", query: params, expect: http.StatusOK, out: &p}); err != nil {
			return nil, err
		}
		res := p.Embedded.SearchResult
		for _, o := range res.Embedded.Objects {
			obj := o.Embedded.IndexableObject
			if err := obj.validate(); err != nil {
				return nil, err
			}
			out = append(out, obj)
		}
		if page+1 >= res.Page.TotalPages {
			return out, nil
		}
	}
}

// FindItem looks up the item of a collection carrying the given sistedes
// identifier. It returns nil when there is none.
func (c *Client) FindItem(ctx context.Context, collectionID, sistedesID string) (*archive.Entity, error) {
	q := url.Values{
		"dsoType": {"item"},
		"scope":   {collectionID},
		"query":   {archive.KeySistedesID + `:"` + sistedesID + `"`},
	}
	found, err := c.search(ctx, "find item", q)
	if err != nil {
		return nil, err
	}
	for _, obj := range found {
		e := obj.entity(archive.KindItem)
		if e.SistedesID == sistedesID {
			return &e, nil
		}
	}
	return nil, nil
}

// CreateCommunity creates e under parentID (a top community when parentID
// is empty) and fills in its ID and Handle.
func (c *Client) CreateCommunity(ctx context.Context, parentID string, e *archive.Entity) error {
	var q url.Values
	if parentID != "" {
		q = url.Values{"parent": {parentID}}
	}
	return c.create(ctx, "create community", "/api/core/communities", q, dso{Name: e.Title, Metadata: toWire(e.Metadata())}, e, parentID)
}

// CreateCollection creates e under the community parentID.
func (c *Client) CreateCollection(ctx context.Context, parentID string, e *archive.Entity) error {
	q := url.Values{"parent": {parentID}}
	return c.create(ctx, "create collection", "/api/core/collections", q, dso{Name: e.Title, Metadata: toWire(e.Metadata())}, e, parentID)
}

// CreateItem creates e in the collection collectionID. Items with a date
// are written a second time since the repository stamps its own
// accession date on creation.
func (c *Client) CreateItem(ctx context.Context, collectionID string, e *archive.Entity) error {
	q := url.Values{"owningCollection": {collectionID}}
	md := e.Metadata()
	if err := c.create(ctx, "create item", "/api/core/items", q, newItem(md), e, collectionID); err != nil {
		return err
	}
	if e.Date.IsZero() {
		return nil
	}
	item := newItem(md)
	item.ID = e.ID
	item.Handle = e.Handle
	body, err := jsonBody(item)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, request{
		op:          "update item dates",
		method:      http.MethodPut,
		path:        "/api/core/items/" + url.PathEscape(e.ID),
		body:        body,
		contentType: "application/json",
		expect:      http.StatusOK,
	})
	return err
}

func (c *Client) create(ctx context.Context, op, path string, q url.Values, payload dso, e *archive.Entity, parentID string) error {
	body, err := jsonBody(payload)
	if err != nil {
		return err
	}
	var created dso
	if _, err := c.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        path,
		query:       q,
		body:        body,
		contentType: "application/json",
		expect:      http.StatusCreated,
		out:         &created,
	}); err != nil {
		return err
	}
	if err := created.validate(); err != nil {
		return err
	}
	e.ID = created.ID
	e.Handle = created.Handle
	e.ParentID = parentID
	c.logger.Debug("created object", "op", op, "id", e.ID, "handle", e.Handle, "title", e.Title)
	return nil
}

// CreateItemTemplate sets the metadata every new item of a collection
// starts with.
func (c *Client) CreateItemTemplate(ctx context.Context, collectionID string, md archive.Metadata) error {
	body, err := jsonBody(dso{Metadata: toWire(md), Type: "item"})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, request{
		op:          "create item template",
		method:      http.MethodPost,
		path:        fmt.Sprintf("/api/core/collections/%s/itemtemplate", url.PathEscape(collectionID)),
		body:        body,
		contentType: "application/json",
		expect:      http.StatusCreated,
	})
	return err
}
