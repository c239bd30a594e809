// Package archive defines the target-repository entities the migration
// creates: communities, collections and items (publications and persons).
package archive

import (
	"strings"
	"time"
)

// Kind tags the variant of an Entity.
type Kind string

const (
	KindCommunity  Kind = "community"
	KindCollection Kind = "collection"
	KindItem       Kind = "item"
)

// Item entity types.
const (
	TypePublication = "Publication"
	TypePerson      = "Person"
)

// Bundle names for attached files.
const (
	BundleOriginal = "ORIGINAL"
	BundleOther    = "OTHER"
)

// RelationType identifies an author relationship kind in the target
// repository.
type RelationType int

const (
	RelationPaper    RelationType = 1
	RelationAbstract RelationType = 2
	RelationSeminar  RelationType = 3
)

// HandleResolver is the public resolver base for handle URLs.
const HandleResolver = "https://hdl.handle.net/"

// DateLayout is the timestamp layout the repository expects for dates.
const DateLayout = "2006-01-02T00:00:00Z"

// Entity is a community, collection or item. ID and Handle are assigned by
// the repository; SistedesID is the deterministic path computed from the
// source hierarchy.
type Entity struct {
	Kind        Kind      `json:"kind"`
	ID          string    `json:"id,omitempty"`
	Handle      string    `json:"handle,omitempty"`
	ParentID    string    `json:"parent_id,omitempty"`
	SistedesID  string    `json:"sistedes_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Abstract    string    `json:"abstract,omitempty"`
	Date        time.Time `json:"date,omitempty"`
	EntityType  string    `json:"entity_type,omitempty"`

	// Extra holds item-specific fields (subjects, rights, authors...).
	Extra Metadata `json:"extra,omitempty"`
}

// HandleURL returns the resolver URL of a handle.
func HandleURL(handle string) string {
	return HandleResolver + strings.TrimSpace(handle)
}

// Metadata renders the entity as a metadata bag.
func (e *Entity) Metadata() Metadata {
	md := e.Extra.Clone()
	md.Set(KeyTitle, e.Title)
	md.Set(KeyDescription, e.Description)
	md.Set(KeyAbstract, e.Abstract)
	if e.SistedesID != "" {
		md.Set(KeySistedesID, e.SistedesID)
		md.Set(KeyURI, HandleURL(e.SistedesID))
	}
	if e.Kind == KindItem {
		md.Set(KeyEntityType, e.EntityType)
		if !e.Date.IsZero() {
			d := e.Date.UTC().Format(DateLayout)
			md.Set(KeyDateAccession, d)
			md.Set(KeyDateAvailable, d)
			md.Set(KeyDateIssued, e.Date.UTC().Format("2006-01-02"))
		}
	}
	return md
}

// EntityFromMetadata rebuilds an Entity read back from the repository.
func EntityFromMetadata(kind Kind, id, handle string, md Metadata) Entity {
	e := Entity{
		Kind:        kind,
		ID:          id,
		Handle:      handle,
		SistedesID:  md.First(KeySistedesID),
		Title:       md.First(KeyTitle),
		Description: md.First(KeyDescription),
		Abstract:    md.First(KeyAbstract),
		EntityType:  md.First(KeyEntityType),
		Extra:       make(Metadata),
	}
	if e.SistedesID == "" {
		if uri := md.First(KeyURI); strings.HasPrefix(uri, HandleResolver) {
			e.SistedesID = strings.TrimPrefix(uri, HandleResolver)
		}
	}
	if d := md.First(KeyDateAccession); d != "" {
		if t, err := time.Parse(DateLayout, d); err == nil {
			e.Date = t
		}
	}
	for k, v := range md {
		switch k {
		case KeyTitle, KeyDescription, KeyAbstract, KeySistedesID, KeyURI, KeyEntityType,
			KeyDateAccession, KeyDateAvailable, KeyDateIssued:
			continue
		}
		e.Extra[k] = append([]string(nil), v...)
	}
	return e
}

// Matches reports whether a repository entity corresponds to want: same
// sistedes identifier when both carry one, else same title.
func Matches(found Entity, want *Entity) bool {
	if found.SistedesID != "" && want.SistedesID != "" {
		return found.SistedesID == want.SistedesID
	}
	return found.Title == want.Title
}
