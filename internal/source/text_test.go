package source

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		raw      string
		want     string
		abstract bool
	}{
		{"Un lenguaje para DSLs (Tool demo)", "Un lenguaje para DSLs", false},
		{"«Un lenguaje para DSLs» (Demostración)", "Un lenguaje para DSLs", false},
		{"Testing de APIs (Tutorial)", "Testing de APIs", false},
		{"Model repair (Work in progress)", "Model repair", false},
		{"Reparación de modelos (Trabajo en progreso)", "Reparación de modelos", false},
		{"Verificación de contratos (Resumen)", "Verificación de contratos", true},
		{"Contract checking (Abstract)", "Contract checking", true},
		{"Contract checking (Extended abstract)", "Contract checking", true},
		{"Una técnica (YA PUBLICADO)", "Una técnica", false},
		{"Una técnica (RELEVANTE YA PUBLICADO)", "Una técnica", false},
		{"Una técnica (Artículo relevante)", "Una técnica", false},
		{"(Artículo relevante) Una técnica", "Una técnica", false},
		{"Trabajo relevante: Una técnica", "Una técnica", false},
		{"ARTÍCULO RELEVANTE: «Una técnica»", "Una técnica", false},
		{"Extended abstract of Contract checking", "Contract checking", true},
		{"  Sin calificador  ", "Sin calificador", false},
	}
	for _, tt := range tests {
		got, abstract := CleanTitle(tt.raw)
		if got != tt.want || abstract != tt.abstract {
			t.Errorf("CleanTitle(%q) = (%q, %v), want (%q, %v)", tt.raw, got, abstract, tt.want, tt.abstract)
		}
	}
}

func TestAcronymAndYear(t *testing.T) {
	if got, ok := Acronym("Jornadas de Ingeniería del Software y Bases de Datos (JISBD)"); !ok || got != "JISBD" {
		t.Errorf("Acronym() = %q, %v", got, ok)
	}
	if _, ok := Acronym("Jornadas sin acrónimo"); ok {
		t.Error("Acronym() matched a title without acronym")
	}

	years := map[string]int{
		"PROLE 2019":                     2019,
		"XIV Jornadas (JISBD 1999)":      1999,
		"Actas 2021, Málaga (sede 2022)": 2021,
	}
	for title, want := range years {
		if got, ok := Year(title); !ok || got != want {
			t.Errorf("Year(%q) = %d, %v; want %d", title, got, ok, want)
		}
	}
	for _, title := range []string{"PROLE", "Edición 1989", "Edición 2035"} {
		if _, ok := Year(title); ok {
			t.Errorf("Year(%q) matched", title)
		}
	}
}

func TestCleanKeyword(t *testing.T) {
	tests := map[string]string{
		"  model-driven engineering. ": "Model-driven Engineering",
		`"DSL"`:                        "DSL",
		"verificación &amp; pruebas":   "Verificación & Pruebas",
	}
	for in, want := range tests {
		if got := CleanKeyword(in); got != want {
			t.Errorf("CleanKeyword(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFirstParagraph(t *testing.T) {
	html := "<div><p>Las <strong>jornadas</strong>\n de\tPROLE.</p><p>Segundo.</p></div>"
	if got := FirstParagraph(html); got != "Las jornadas de PROLE." {
		t.Errorf("FirstParagraph() = %q", got)
	}
	if got := FirstParagraph("texto <em>plano</em>"); got != "texto plano" {
		t.Errorf("FirstParagraph() without <p> = %q", got)
	}
}

func TestParseLicense(t *testing.T) {
	tests := map[string]License{
		"CC BY 4.0":       LicenseCCBY,
		"CreativeCommons": LicenseCCBY,
		"1":               LicenseCCBY,
		"CC BY-NC-ND 4.0": LicenseCCBYNCND,
		"Restringida":     LicenseRestricted,
		"Ya Publicado":    LicensePublished,
		"":                LicenseUnknown,
		"GPL":             LicenseUnknown,
	}
	for in, want := range tests {
		if got := ParseLicense(in); got != want {
			t.Errorf("ParseLicense(%q) = %q, want %q", in, got, want)
		}
	}
	if LicenseRestricted.URL() != "" || LicenseCCBY.URL() == "" {
		t.Error("unexpected license URLs")
	}
}

func TestWirePost(t *testing.T) {
	data := `{
		"id": 42,
		"title": {"rendered": "Track &#8211; Modelado"},
		"metadata": {"handle": ["11705/PROLE/2019/001"], "author_name_1": " Ana Gil ", "paper_pdf": 7},
		"articulos": {"b": "https://example.org/a/2", "a": "https://example.org/a/1", "c": ""}
	}`
	var p wpPost
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if p.ID != "42" || p.title() != "Track – Modelado" {
		t.Errorf("id/title = %q/%q", p.ID, p.title())
	}
	if p.Metadata["handle"] != "11705/PROLE/2019/001" || p.Metadata["paper_pdf"] != "7" {
		t.Errorf("metadata = %v", p.Metadata)
	}
	if want := []string{"https://example.org/a/2", "https://example.org/a/1"}; !reflect.DeepEqual([]string(p.Articulos), want) {
		t.Errorf("articulos = %v, want %v", p.Articulos, want)
	}
	if got := p.authors(); len(got) != 1 || got[0].Name != "Ana Gil" {
		t.Errorf("authors = %+v", got)
	}

	for _, empty := range []string{`{"id":"7","articulos":false,"metadata":[]}`, `{"id":"7","articulos":[],"metadata":false}`, `{"id":"7","articulos":null}`} {
		var q wpPost
		if err := json.Unmarshal([]byte(empty), &q); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", empty, err)
		}
		if len(q.Articulos) != 0 || len(q.Metadata) != 0 {
			t.Errorf("Unmarshal(%s) = %+v", empty, q)
		}
	}
}

func TestSeminarDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2 de marzo de 2021", time.Date(2021, 3, 2, 0, 0, 0, 0, time.UTC), false},
		{"15 de septiembre de 2022, 16:30 h.", time.Date(2022, 9, 15, 16, 30, 0, 0, time.UTC), false},
		{"15 de brumario de 2022", time.Time{}, true},
		{"marzo 2021", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := SeminarDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("SeminarDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("SeminarDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBulletinDate(t *testing.T) {
	got, err := BulletinDate("Boletín nº 5 - marzo de 2021")
	if err != nil || !got.Equal(time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("BulletinDate() = %v, %v", got, err)
	}
	if got, err := BulletinDate("Boletín nº 9 - diciembre 2022"); err != nil || got.Month() != time.December {
		t.Errorf("BulletinDate() without particle = %v, %v", got, err)
	}
	if _, err := BulletinDate("Boletín sin fecha"); err == nil {
		t.Error("BulletinDate() accepted a title without date")
	}

	b := Bulletin{Date: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)}
	if got := b.Description(); got != "Boletín de Sistedes. Marzo de 2021." {
		t.Errorf("Description() = %q", got)
	}
}

func TestParseSpeakers(t *testing.T) {
	got := ParseSpeakers(`Ana Gil (Universidad de "Málaga"), Juan Pérez (UPV); Marta Ruiz`)
	want := []AuthorMention{
		{Name: "Ana Gil", Affiliation: "Universidad de Málaga"},
		{Name: "Juan Pérez", Affiliation: "UPV"},
		{Name: "Marta Ruiz"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseSpeakers() = %+v, want %+v", got, want)
	}
}
