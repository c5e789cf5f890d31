package normalize

import (
	_ "embed"
	"strings"
	"sync"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/fleetops/fleetops/internal/model"
)

//go:embed countries.yaml
var countriesYAML []byte

// Country is one entry of the name table.
type Country struct {
	Code    string   `yaml:"code"`
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// CountryTable resolves country names to ISO 3166-1 alpha-2 codes.
type CountryTable struct {
	byName map[string]string
}

// NewCountryTable indexes the given countries by folded name and alias.
func NewCountryTable(countries []Country) (*CountryTable, error) {
	t := &CountryTable{byName: make(map[string]string, len(countries)*2)}
	for _, c := range countries {
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		if len(code) != 2 {
			return nil, eris.Errorf("normalize: country %q has invalid code %q", c.Name, c.Code)
		}
		for _, name := range append([]string{c.Name}, c.Aliases...) {
			key := foldName(name)
			if key == "" {
				continue
			}
			if existing, ok := t.byName[key]; ok && existing != code {
				return nil, eris.Errorf("normalize: country name %q maps to both %s and %s", name, existing, code)
			}
			t.byName[key] = code
		}
	}
	return t, nil
}

// LoadCountryTable parses a YAML document with a top-level "countries" list.
func LoadCountryTable(data []byte) (*CountryTable, error) {
	var doc struct {
		Countries []Country `yaml:"countries"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "normalize: parse country table")
	}
	if len(doc.Countries) == 0 {
		return nil, eris.New("normalize: country table is empty")
	}
	return NewCountryTable(doc.Countries)
}

var (
	defaultCountries     *CountryTable
	defaultCountriesErr  error
	defaultCountriesOnce sync.Once
)

// DefaultCountryTable returns the embedded ISO 3166-1 table.
func DefaultCountryTable() (*CountryTable, error) {
	defaultCountriesOnce.Do(func() {
		defaultCountries, defaultCountriesErr = LoadCountryTable(countriesYAML)
	})
	return defaultCountries, defaultCountriesErr
}

// Resolve returns the code for name. Matching is exact after case folding,
// whitespace collapsing and diacritic removal.
func (t *CountryTable) Resolve(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	code, ok := t.byName[foldName(name)]
	return code, ok
}

// Len returns the number of indexed names.
func (t *CountryTable) Len() int {
	return len(t.byName)
}

// ResolveCountryCode resolves name against the embedded table, failing with
// a NotFound error for unknown names.
func ResolveCountryCode(name string) (string, error) {
	t, err := DefaultCountryTable()
	if err != nil {
		return "", err
	}
	code, ok := t.Resolve(name)
	if !ok {
		return "", model.NewError(model.ErrNotFound, "unknown country "+quote(name), nil)
	}
	return code, nil
}

// foldName lowercases, strips combining marks and collapses whitespace.
func foldName(s string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

func quote(s string) string {
	return `"` + s + `"`
}
