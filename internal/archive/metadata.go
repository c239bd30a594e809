package archive

import (
	"sort"
	"strings"
)

// Metadata field names used in the target repository.
const (
	KeyTitle         = "dc.title"
	KeyDescription   = "dc.description"
	KeyAbstract      = "dc.description.abstract"
	KeyURI           = "dc.identifier.uri"
	KeySistedesID    = "dc.identifier.sistedes"
	KeySubject       = "dc.subject"
	KeyRights        = "dc.rights"
	KeyRightsURI     = "dc.rights.uri"
	KeyIsPartOf      = "dc.relation.ispartof"
	KeyIsFormatOf    = "dc.relation.isformatof"
	KeyPublisher     = "dc.publisher"
	KeyAuthor        = "dc.contributor.author"
	KeyDateIssued    = "dc.date.issued"
	KeyDateAccession = "dc.date.accessioned"
	KeyDateAvailable = "dc.date.available"
	KeyExtent        = "dc.format.extent"
	KeyProvenance    = "dc.description.provenance"
	KeyBio           = "dc.contributor.bio"
	KeyEntityType    = "dspace.entity.type"

	KeyGivenName   = "person.givenName"
	KeyFamilyName  = "person.familyName"
	KeyEmail       = "person.email"
	KeyAffiliation = "person.affiliation.name"
	KeyNameVariant = "person.name.variant"
)

// Metadata is an ordered multi-valued attribute bag keyed by field name.
type Metadata map[string][]string

// First returns the first value of key, or "".
func (m Metadata) First(key string) string {
	if v := m[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Set replaces the values of key, dropping blank ones. Setting only blank
// values removes the key.
func (m Metadata) Set(key string, values ...string) {
	var kept []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		delete(m, key)
		return
	}
	m[key] = kept
}

// Add appends value to key unless it is blank or already present.
func (m Metadata) Add(key, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" || m.Has(key, value) {
		return false
	}
	m[key] = append(m[key], value)
	return true
}

// Has reports whether value is recorded under key.
func (m Metadata) Has(key, value string) bool {
	for _, v := range m[key] {
		if v == value {
			return true
		}
	}
	return false
}

// Keys returns the field names in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}
