package source

import (
	"fmt"
	"strings"
)

// Field is a canonical record field a source column can map onto.
type Field int

const (
	FieldCampaign Field = iota + 1
	FieldDomain
	FieldAccount
	FieldLanguage
	FieldCampaignType
	FieldStatus
	FieldDate
	FieldImpressions
	FieldClicks
	FieldCost
	FieldConversions
	FieldRevenue
)

var fieldNames = map[Field]string{
	FieldCampaign:     "campaign",
	FieldDomain:       "domain",
	FieldAccount:      "account",
	FieldLanguage:     "language",
	FieldCampaignType: "campaign_type",
	FieldStatus:       "status",
	FieldDate:         "date",
	FieldImpressions:  "impressions",
	FieldClicks:       "clicks",
	FieldCost:         "cost",
	FieldConversions:  "conversions",
	FieldRevenue:      "revenue",
}

func (f Field) String() string {
	if n, ok := fieldNames[f]; ok {
		return n
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Mapping is the fate of one source column: mapped onto a canonical field,
// or explicitly ignored. Build one with Mapped or use Ignored.
type Mapping struct {
	field   Field
	ignored bool
}

// Mapped maps a column onto a canonical field.
func Mapped(f Field) Mapping { return Mapping{field: f} }

// Ignored drops a column. Pre-computed rate columns use it so that derived
// metrics always come from the raw counters.
var Ignored = Mapping{ignored: true}

// Field returns the target field, or false when the column is ignored.
func (m Mapping) Field() (Field, bool) {
	if m.ignored || m.field == 0 {
		return 0, false
	}
	return m.field, true
}

// IsIgnored reports whether the mapping is the Ignored variant.
func (m Mapping) IsIgnored() bool { return m.ignored }

// Schema describes one export format.
type Schema struct {
	Name string
	// SkipLines is the number of lines before the header row.
	SkipLines int
	// NormalizeHeaders lower-cases and trims header text before lookup.
	NormalizeHeaders bool
	DateOrder        DateOrder
	// DecomposeAccount derives domain and language from the account name.
	DecomposeAccount bool
	Columns          map[string]Mapping
}

// Lookup resolves a raw header to its canonical field. Unknown and ignored
// columns both report false.
func (s *Schema) Lookup(header string) (Field, bool) {
	key := header
	if s.NormalizeHeaders {
		key = NormalizeHeader(header)
	}
	m, ok := s.Columns[key]
	if !ok {
		return 0, false
	}
	return m.Field()
}

// NormalizeHeader lower-cases a header and collapses its whitespace.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// Google is the search-ads export: header on the first line, verbatim
// column names, ISO dates and separate domain/language columns.
var Google = &Schema{
	Name:      "google",
	DateOrder: YMD,
	Columns: map[string]Mapping{
		"Campaign":        Mapped(FieldCampaign),
		"Domain name":     Mapped(FieldDomain),
		"Account name":    Mapped(FieldAccount),
		"Language":        Mapped(FieldLanguage),
		"Campaign type":   Mapped(FieldCampaignType),
		"Campaign status": Mapped(FieldStatus),
		"Day":             Mapped(FieldDate),
		"Impr.":           Mapped(FieldImpressions),
		"Clicks":          Mapped(FieldClicks),
		"Cost":            Mapped(FieldCost),
		"Conversions":     Mapped(FieldConversions),
		"Conv. value":     Mapped(FieldRevenue),

		"CTR":                Ignored,
		"Avg. CPC":           Ignored,
		"Cost / conv.":       Ignored,
		"Conv. rate":         Ignored,
		"ROAS":               Ignored,
		"Conv. value / cost": Ignored,
	},
}

// Microsoft is the other ad platform's export: a report-title line precedes
// the header, header text is inconsistently cased, dates are day-month-year
// and the account name encodes domain and language.
var Microsoft = &Schema{
	Name:             "microsoft",
	SkipLines:        1,
	NormalizeHeaders: true,
	DateOrder:        DMY,
	DecomposeAccount: true,
	Columns: map[string]Mapping{
		"campaign name":   Mapped(FieldCampaign),
		"account name":    Mapped(FieldAccount),
		"campaign type":   Mapped(FieldCampaignType),
		"campaign status": Mapped(FieldStatus),
		"date":            Mapped(FieldDate),
		"time period":     Mapped(FieldDate),
		"impressions":     Mapped(FieldImpressions),
		"clicks":          Mapped(FieldClicks),
		"spend":           Mapped(FieldCost),
		"conversions":     Mapped(FieldConversions),
		"revenue":         Mapped(FieldRevenue),

		"ctr":                 Ignored,
		"average cpc":         Ignored,
		"avg. cpc":            Ignored,
		"cost per conversion": Ignored,
		"conversion rate":     Ignored,
		"return on ad spend":  Ignored,
	},
}

var schemas = map[string]*Schema{
	Google.Name:    Google,
	Microsoft.Name: Microsoft,
}

// SchemaByName returns a known schema.
func SchemaByName(name string) (*Schema, error) {
	s, ok := schemas[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q (want google or microsoft)", name)
	}
	return s, nil
}
