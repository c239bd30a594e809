package dspace

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sistedes/dspace-migrator/internal/archive"
)

// CreateRelationship links an item to a person with the given relation
// type.
func (c *Client) CreateRelationship(ctx context.Context, t archive.RelationType, itemID, personID string) error {
	uris := fmt.Sprintf("%s/api/core/items/%s \n %s/api/core/items/%s", c.baseURL, itemID, c.baseURL, personID)
	_, err := c.do(ctx, request{
		op:          "create relationship",
		method:      http.MethodPost,
		path:        "/api/core/relationships",
		query:       url.Values{"relationshipType": {strconv.Itoa(int(t))}},
		body:        bytes.NewBufferString(uris),
		contentType: "text/uri-list",
		expect:      http.StatusCreated,
	})
	return err
}

// CreateBundle adds a named bundle to an item and returns its ID.
func (c *Client) CreateBundle(ctx context.Context, itemID, name string) (string, error) {
	body, err := jsonBody(map[string]string{"name": name})
	if err != nil {
		return "", err
	}
	var created dso
	if _, err := c.do(ctx, request{
		op:          "create bundle",
		method:      http.MethodPost,
		path:        fmt.Sprintf("/api/core/items/%s/bundles", url.PathEscape(itemID)),
		body:        body,
		contentType: "application/json",
		expect:      http.StatusCreated,
		out:         &created,
	}); err != nil {
		return "", err
	}
	if err := created.validate(); err != nil {
		return "", err
	}
	return created.ID, nil
}

// UploadBitstream stores the content of r as a file of the bundle and
// returns the bitstream ID.
func (c *Client) UploadBitstream(ctx context.Context, bundleID, filename string, r io.Reader) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	var created dso
	_, err := c.do(ctx, request{
		op:          "upload bitstream",
		method:      http.MethodPost,
		path:        fmt.Sprintf("/api/core/bundles/%s/bitstreams", url.PathEscape(bundleID)),
		body:        pr,
		contentType: mw.FormDataContentType(),
		expect:      http.StatusCreated,
		out:         &created,
	})
	// Unblock the writer if the request ended before reading everything.
	_ = pr.Close()
	if err != nil {
		return "", err
	}
	if err := created.validate(); err != nil {
		return "", err
	}
	return created.ID, nil
}

// RemoveFirstPolicy deletes the first resource policy of an object. New
// bitstreams inherit an anonymous read policy; removing it restricts the
// file.
func (c *Client) RemoveFirstPolicy(ctx context.Context, objectID string) error {
	policies, err := list[policy](ctx, c, "list policies", "/api/authz/resourcepolicies/search/resource?uuid="+url.QueryEscape(objectID), "resourcepolicies")
	if err != nil {
		return err
	}
	if len(policies) == 0 {
		c.logger.Warn("object has no resource policy to remove", "id", objectID)
		return nil
	}
	_, err = c.do(ctx, request{
		op:     "delete policy",
		method: http.MethodDelete,
		path:   "/api/authz/resourcepolicies/" + strconv.Itoa(policies[0].ID),
		expect: http.StatusNoContent,
	})
	return err
}
