package source

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/theirongolddev/adpulse/internal/model"

	"github.com/sirupsen/logrus"
)

// Options configures a single parse.
type Options struct {
	// Source labels every record; defaults to the schema name.
	Source string
	// SkipLines overrides the schema's count when positive.
	SkipLines int
	Brands    []BrandRule
	Logger    logrus.FieldLogger
}

// ParseResult holds the records that survived mapping plus how many data rows
// were dropped for lacking a campaign or a parseable date.
type ParseResult struct {
	Source  string
	Records []model.Record
	Rows    int
	Dropped int
}

// Parse maps CSV text in the given schema onto canonical records. Bad cell
// values never fail the parse; only unreadable CSV does.
func Parse(r io.Reader, schema *Schema, opts Options) (ParseResult, error) {
	result := ParseResult{Source: opts.Source}
	if result.Source == "" {
		result.Source = schema.Name
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("source", result.Source)

	skip := schema.SkipLines
	if opts.SkipLines > 0 {
		skip = opts.SkipLines
	}
	br := bufio.NewReader(r)
	if err := skipLines(br, skip); err != nil {
		return result, fmt.Errorf("skipping preamble: %w", err)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return result, fmt.Errorf("%s: no header row", result.Source)
	}
	if err != nil {
		return result, fmt.Errorf("%s: reading header: %w", result.Source, err)
	}

	cols := make([]Field, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if f, ok := schema.Lookup(strings.TrimSpace(h)); ok {
			cols[i] = f
		}
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("%s: reading row: %w", result.Source, err)
		}
		result.Rows++

		rec, reason := mapRow(row, cols, schema, opts.Brands)
		if reason != "" {
			line, _ := cr.FieldPos(0)
			result.Dropped++
			log.WithFields(logrus.Fields{
				"line":   line + skip,
				"reason": reason,
			}).Debug("dropping row")
			continue
		}
		rec.Source = result.Source
		result.Records = append(result.Records, rec)
	}

	return result, nil
}

// ParseString is Parse over in-memory text.
func ParseString(text string, schema *Schema, opts Options) (ParseResult, error) {
	return Parse(strings.NewReader(text), schema, opts)
}

// mapRow builds a record from one row. A non-empty reason means the row is
// dropped.
func mapRow(row []string, cols []Field, schema *Schema, brands []BrandRule) (model.Record, string) {
	var rec model.Record
	var rawDate string

	for i, f := range cols {
		if f == 0 || i >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[i])
		switch f {
		case FieldCampaign:
			rec.Campaign = v
		case FieldDomain:
			rec.Domain = v
		case FieldAccount:
			rec.Account = v
		case FieldLanguage:
			rec.Language = v
		case FieldCampaignType:
			rec.CampaignType = v
		case FieldStatus:
			rec.Status = v
		case FieldDate:
			rawDate = v
		case FieldImpressions:
			rec.Impressions = ParseNumeric(v)
		case FieldClicks:
			rec.Clicks = ParseNumeric(v)
		case FieldCost:
			rec.Cost = ParseNumeric(v)
		case FieldConversions:
			rec.Conversions = ParseNumeric(v)
		case FieldRevenue:
			rec.Revenue = ParseNumeric(v)
		}
	}

	if rec.Campaign == "" {
		return rec, "missing campaign"
	}
	if rawDate == "" {
		return rec, "missing date"
	}
	if schema.DateOrder == DMY {
		rawDate = ReorderDate(rawDate)
	}
	date, ok := ParseDate(rawDate)
	if !ok {
		return rec, "unparseable date"
	}
	rec.Date = date

	if schema.DecomposeAccount {
		parts := DecomposeAccount(rec.Account, brands)
		rec.Account = parts.Display
		if rec.Domain == "" {
			rec.Domain = parts.Domain
		}
		if rec.Language == "" {
			rec.Language = parts.Language
		}
	}
	return rec, ""
}

func skipLines(br *bufio.Reader, n int) error {
	for i := 0; i < n; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
	return nil
}
