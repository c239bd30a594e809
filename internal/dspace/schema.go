package dspace

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type metadataSchema struct {
	ID        int    `json:"id,omitempty"`
	Prefix    string `json:"prefix"`
	Namespace string `json:"namespace"`
}

type metadataField struct {
	ID        int     `json:"id,omitempty"`
	Element   string  `json:"element"`
	Qualifier *string `json:"qualifier"`
	ScopeNote string  `json:"scopeNote,omitempty"`
}

func (f metadataField) name() string {
	if f.Qualifier == nil || *f.Qualifier == "" {
		return f.Element
	}
	return f.Element + "." + *f.Qualifier
}

// EnsureSchema makes sure the metadata schema prefix exists and registers
// any of fields ("element" or "element.qualifier") it is missing.
func (c *Client) EnsureSchema(ctx context.Context, prefix, namespace string, fields []string) error {
	schemas, err := list[metadataSchema](ctx, c, "metadata schemas", "/api/core/metadataschemas", "metadataschemas")
	if err != nil {
		return err
	}
	var schema *metadataSchema
	for i := range schemas {
		if schemas[i].Prefix == prefix {
			schema = &schemas[i]
			break
		}
	}
	if schema == nil {
		body, err := jsonBody(metadataSchema{Prefix: prefix, Namespace: namespace})
		if err != nil {
			return err
		}
		var created metadataSchema
		if _, err := c.do(ctx, request{
			op:          "create metadata schema",
			method:      http.MethodPost,
			path:        "/api/core/metadataschemas",
			body:        body,
			contentType: "application/json",
			expect:      http.StatusCreated,
			out:         &created,
		}); err != nil {
			return err
		}
		schema = &created
		c.logger.Info("created metadata schema", "prefix", prefix)
	}

	existing, err := c.schemaFields(ctx, prefix)
	if err != nil {
		return err
	}
	for _, name := range fields {
		if existing[name] {
			continue
		}
		element, qualifier, _ := strings.Cut(name, ".")
		f := metadataField{Element: element}
		if qualifier != "" {
			f.Qualifier = &qualifier
		}
		body, err := jsonBody(f)
		if err != nil {
			return err
		}
		if _, err := c.do(ctx, request{
			op:          "create metadata field",
			method:      http.MethodPost,
			path:        "/api/core/metadatafields",
			query:       url.Values{"schemaId": {strconv.Itoa(schema.ID)}},
			body:        body,
			contentType: "application/json",
			expect:      http.StatusCreated,
		}); err != nil {
			return fmt.Errorf("registering %s.%s: %w", prefix, name, err)
		}
		c.logger.Debug("created metadata field", "field", prefix+"."+name)
	}
	return nil
}

func (c *Client) schemaFields(ctx context.Context, prefix string) (map[string]bool, error) {
	path := "/api/core/metadatafields/search/bySchema?schema=" + url.QueryEscape(prefix)
	found, err := list[metadataField](ctx, c, "metadata fields", path, "metadatafields")
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(found))
	for _, f := range found {
		out[f.name()] = true
	}
	return out, nil
}
