package backend

import "sort"

// Language describes one entry of the supported language catalogue.
type Language struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Tesseract string `json:"tesseract"`
}

var catalogue = []Language{
	{Code: "en", Name: "English", Tesseract: "eng"},
	{Code: "es", Name: "Spanish", Tesseract: "spa"},
	{Code: "fr", Name: "French", Tesseract: "fra"},
	{Code: "de", Name: "German", Tesseract: "deu"},
	{Code: "ch_sim", Name: "Chinese (Simplified)", Tesseract: "chi_sim"},
	{Code: "ar", Name: "Arabic", Tesseract: "ara"},
	{Code: "hi", Name: "Hindi", Tesseract: "hin"},
	{Code: "ja", Name: "Japanese", Tesseract: "jpn"},
	{Code: "ko", Name: "Korean", Tesseract: "kor"},
	{Code: "ru", Name: "Russian", Tesseract: "rus"},
}

var (
	byCode      = make(map[string]Language, len(catalogue))
	byTesseract = make(map[string]Language, len(catalogue))
)

func init() {
	for _, l := range catalogue {
		byCode[l.Code] = l
		byTesseract[l.Tesseract] = l
	}
}

// SupportedLanguages returns the language catalogue sorted by code.
func SupportedLanguages() []Language {
	out := append([]Language(nil), catalogue...)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// TesseractCode maps a catalogue code to its Tesseract traineddata name.
// Tesseract names and unknown codes are returned unchanged.
func TesseractCode(code string) string {
	if l, ok := byCode[code]; ok {
		return l.Tesseract
	}
	return code
}

// LanguageName returns a display name for a catalogue or Tesseract code,
// falling back to the code itself.
func LanguageName(code string) string {
	if l, ok := byCode[code]; ok {
		return l.Name
	}
	if l, ok := byTesseract[code]; ok {
		return l.Name
	}
	return code
}
