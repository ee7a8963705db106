// Package lang holds the fixed language catalog shared by every pipeline
// stage. Tags follow the NLLB convention of ISO 639-3 plus script
// (e.g., "hin_Deva"). The catalog is read-only after process start; no stage
// may emit a tag outside it.
package lang

// Language is one catalog entry.
type Language struct {
	// Tag is the canonical language identifier (e.g., "eng_Latn").
	Tag string `json:"tag"`

	// Name is the English display name.
	Name string `json:"name"`

	// Script is the writing-system family of the tag.
	Script string `json:"script"`

	// ISO1 is the two-letter ISO 639-1 code where one exists; empty
	// otherwise. Engines speaking BCP-style codes (gtts, edge, whisper)
	// translate through this field.
	ISO1 string `json:"-"`
}

// English is the catalog tag for English.
const English = "eng_Latn"

// catalog lists English plus the 22 scheduled Indian languages.
// Order is fixed and used for stable API responses.
var catalog = []Language{
	{Tag: "asm_Beng", Name: "Assamese", Script: "Bengali", ISO1: "as"},
	{Tag: "ben_Beng", Name: "Bengali", Script: "Bengali", ISO1: "bn"},
	{Tag: "brx_Deva", Name: "Bodo", Script: "Devanagari"},
	{Tag: "doi_Deva", Name: "Dogri", Script: "Devanagari"},
	{Tag: "eng_Latn", Name: "English", Script: "Latin", ISO1: "en"},
	{Tag: "gom_Deva", Name: "Konkani", Script: "Devanagari"},
	{Tag: "guj_Gujr", Name: "Gujarati", Script: "Gujarati", ISO1: "gu"},
	{Tag: "hin_Deva", Name: "Hindi", Script: "Devanagari", ISO1: "hi"},
	{Tag: "kan_Knda", Name: "Kannada", Script: "Kannada", ISO1: "kn"},
	{Tag: "kas_Arab", Name: "Kashmiri", Script: "Perso-Arabic", ISO1: "ks"},
	{Tag: "mai_Deva", Name: "Maithili", Script: "Devanagari"},
	{Tag: "mal_Mlym", Name: "Malayalam", Script: "Malayalam", ISO1: "ml"},
	{Tag: "mar_Deva", Name: "Marathi", Script: "Devanagari", ISO1: "mr"},
	{Tag: "mni_Beng", Name: "Manipuri", Script: "Bengali"},
	{Tag: "npi_Deva", Name: "Nepali", Script: "Devanagari", ISO1: "ne"},
	{Tag: "ory_Orya", Name: "Odia", Script: "Odia", ISO1: "or"},
	{Tag: "pan_Guru", Name: "Punjabi", Script: "Gurmukhi", ISO1: "pa"},
	{Tag: "san_Deva", Name: "Sanskrit", Script: "Devanagari", ISO1: "sa"},
	{Tag: "sat_Olck", Name: "Santali", Script: "Ol Chiki"},
	{Tag: "snd_Arab", Name: "Sindhi", Script: "Perso-Arabic", ISO1: "sd"},
	{Tag: "tam_Taml", Name: "Tamil", Script: "Tamil", ISO1: "ta"},
	{Tag: "tel_Telu", Name: "Telugu", Script: "Telugu", ISO1: "te"},
	{Tag: "urd_Arab", Name: "Urdu", Script: "Perso-Arabic", ISO1: "ur"},
}

var byTag = func() map[string]Language {
	m := make(map[string]Language, len(catalog))
	for _, l := range catalog {
		m[l.Tag] = l
	}
	return m
}()

var byISO1 = func() map[string]Language {
	m := make(map[string]Language, len(catalog))
	for _, l := range catalog {
		if l.ISO1 != "" {
			m[l.ISO1] = l
		}
	}
	return m
}()

// All returns the full catalog in fixed order. The returned slice is a copy;
// callers cannot mutate the catalog.
func All() []Language {
	out := make([]Language, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry for tag.
func Lookup(tag string) (Language, bool) {
	l, ok := byTag[tag]
	return l, ok
}

// Known reports whether tag is in the catalog.
func Known(tag string) bool {
	_, ok := byTag[tag]
	return ok
}

// FromISO1 maps a two-letter ISO 639-1 code back to a catalog entry.
// Engines that detect languages in ISO 639-1 terms resolve through this.
func FromISO1(code string) (Language, bool) {
	l, ok := byISO1[code]
	return l, ok
}

// Indic returns every catalog tag except English. Engines restricted to
// Indian languages declare this set.
func Indic() []string {
	out := make([]string, 0, len(catalog)-1)
	for _, l := range catalog {
		if l.Tag != "eng_Latn" {
			out = append(out, l.Tag)
		}
	}
	return out
}
