package dspace

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sistedes/dspace-migrator/internal/archive"
)

// metadataValue is one entry of a DSpace metadata field.
type metadataValue struct {
	Value      string  `json:"value"`
	Language   *string `json:"language"`
	Authority  *string `json:"authority"`
	Confidence int     `json:"confidence"`
	Place      int     `json:"place"`
}

type wireMetadata map[string][]metadataValue

func toWire(md archive.Metadata) wireMetadata {
	out := make(wireMetadata, len(md))
	for _, k := range md.Keys() {
		for i, v := range md[k] {
			out[k] = append(out[k], metadataValue{Value: v, Confidence: -1, Place: i})
		}
	}
	return out
}

func fromWire(w wireMetadata) archive.Metadata {
	md := make(archive.Metadata, len(w))
	for k, vals := range w {
		for _, v := range vals {
			md.Add(k, v.Value)
		}
	}
	return md
}

// dso is the common shape of communities, collections, items, bundles and
// bitstreams.
type dso struct {
	ID           string       `json:"id,omitempty"`
	UUID         string       `json:"uuid,omitempty"`
	Name         string       `json:"name,omitempty"`
	Handle       string       `json:"handle,omitempty"`
	Metadata     wireMetadata `json:"metadata,omitempty"`
	InArchive    *bool        `json:"inArchive,omitempty"`
	Discoverable *bool        `json:"discoverable,omitempty"`
	Withdrawn    *bool        `json:"withdrawn,omitempty"`
	Type         string       `json:"type,omitempty"`
}

// validate checks that the repository returned a usable identifier.
func (d *dso) validate() error {
	id := d.ID
	if id == "" {
		id = d.UUID
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: object %q has no valid uuid: %v", ErrInvalidResponse, d.Name, err)
	}
	d.ID = parsed.String()
	return nil
}

func (d dso) entity(kind archive.Kind) archive.Entity {
	return archive.EntityFromMetadata(kind, d.ID, d.Handle, fromWire(d.Metadata))
}

func newItem(md archive.Metadata) dso {
	yes, no := true, false
	return dso{
		Name:         md.First(archive.KeyTitle),
		Metadata:     toWire(md),
		InArchive:    &yes,
		Discoverable: &yes,
		Withdrawn:    &no,
		Type:         "item",
	}
}

// pageInfo is the pagination block of list responses.
type pageInfo struct {
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Number        int `json:"number"`
}

// listPage is a HAL collection whose embedded array name depends on the
// endpoint.
type listPage struct {
	Embedded map[string]json.RawMessage `json:"_embedded"`
	Page     pageInfo                   `json:"page"`
}

// searchPage is a discovery search response.
type searchPage struct {
	Embedded struct {
		SearchResult struct {
			Embedded struct {
				Objects []struct {
					Embedded struct {
						IndexableObject dso `json:"indexableObject"`
					} `json:"_embedded"`
				} `json:"objects"`
			} `json:"_embedded"`
			Page pageInfo `json:"page"`
		} `json:"searchResult"`
	} `json:"_embedded"`
}

// site is the repository root object.
type site struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"handle"`
}

// policy is a resource policy; its identifier is numeric.
type policy struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Action string `json:"action"`
}

// patchOp is one JSON Patch operation.
type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}
