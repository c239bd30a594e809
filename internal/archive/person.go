package archive

import "strings"

// Person is an author identity record. GivenName/FamilyName hold the
// canonical spelling; superseded spellings live in NameVariants as
// "Family, Given". Emails are stored lower-cased.
type Person struct {
	ID           string   `json:"id,omitempty"`
	GivenName    string   `json:"given_name"`
	FamilyName   string   `json:"family_name"`
	NameVariants []string `json:"name_variants,omitempty"`
	Emails       []string `json:"emails,omitempty"`
	Affiliations []string `json:"affiliations,omitempty"`
}

// FullName returns "Given Family".
func (p Person) FullName() string {
	return strings.TrimSpace(p.GivenName + " " + p.FamilyName)
}

// Variant returns the canonical name in variant form.
func (p Person) Variant() string {
	return VariantOf(p.GivenName, p.FamilyName)
}

// VariantOf formats a name as "Family, Given".
func VariantOf(given, family string) string {
	return family + ", " + given
}

// ParseVariant splits a "Family, Given" string. Strings without a comma are
// taken as a family name only.
func ParseVariant(v string) (given, family string) {
	v = strings.TrimSpace(v)
	if idx := strings.Index(v, ","); idx > 0 {
		return strings.TrimSpace(v[idx+1:]), strings.TrimSpace(v[:idx])
	}
	return "", v
}

// HasEmail reports whether email is recorded (case-insensitive).
func (p Person) HasEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range p.Emails {
		if e == email {
			return true
		}
	}
	return false
}

// HasVariant reports whether v is recorded as a name variant.
func (p Person) HasVariant(v string) bool {
	for _, known := range p.NameVariants {
		if known == v {
			return true
		}
	}
	return false
}

// Metadata renders the person as a metadata bag.
func (p Person) Metadata() Metadata {
	md := make(Metadata)
	md.Set(KeyTitle, p.Variant())
	md.Set(KeyGivenName, p.GivenName)
	md.Set(KeyFamilyName, p.FamilyName)
	md.Set(KeyNameVariant, p.NameVariants...)
	md.Set(KeyEmail, p.Emails...)
	md.Set(KeyAffiliation, p.Affiliations...)
	md.Set(KeyEntityType, TypePerson)
	return md
}

// PersonFromMetadata rebuilds a Person read back from the repository.
func PersonFromMetadata(id string, md Metadata) Person {
	p := Person{
		ID:           id,
		GivenName:    md.First(KeyGivenName),
		FamilyName:   md.First(KeyFamilyName),
		NameVariants: append([]string(nil), md[KeyNameVariant]...),
		Affiliations: append([]string(nil), md[KeyAffiliation]...),
	}
	for _, e := range md[KeyEmail] {
		p.Emails = append(p.Emails, strings.ToLower(e))
	}
	if p.GivenName == "" && p.FamilyName == "" {
		p.GivenName, p.FamilyName = ParseVariant(md.First(KeyTitle))
	}
	return p
}
