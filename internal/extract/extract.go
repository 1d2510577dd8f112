// Package extract turns Saweria donation notifications into DonationRecords.
//
// Saweria posts either an embed with labelled fields, an embed whose title reads
// "<donor> donated Rp <amount>", a plain "💰 <donor> donated Rp <amount>" line,
// or some mix of these. Every source is applied in a fixed order and a later
// match overwrites an earlier one, so the text body has the final say.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/LordJunedGanteng/saweriabotjuned/internal/domain"
)

// space matches the same whitespace as JavaScript's \s: RE2's \s is ASCII only,
// and Saweria often puts a no-break space after "Rp".
const space = `[\s\x0B\x{00A0}\x{FEFF}\p{Zs}\x{2028}\x{2029}]`

var (
	numericRun   = regexp.MustCompile(`[\d.,]+`)
	titlePattern = regexp.MustCompile(`(?i)(.+?)` + space + `+donated` + space + `+Rp` + space + `*([\d.,]+)`)
	textPattern  = regexp.MustCompile(`(?i)💰` + space + `+(.+?)` + space + `+donated` + space + `+Rp` + space + `*([\d.,]+)`)
	separators   = strings.NewReplacer(".", "", ",", "")
)

// fieldRule maps an embed field to a record field when its label matches.
type fieldRule struct {
	keywords []string
	apply    func(rec *domain.DonationRecord, value string)
}

// Only the first matching rule applies to a given field.
var fieldRules = []fieldRule{
	{
		keywords: []string{"donor", "nama"},
		apply:    func(rec *domain.DonationRecord, value string) { rec.Donor = value },
	},
	{
		keywords: []string{"amount", "jumlah"},
		apply: func(rec *domain.DonationRecord, value string) {
			if amount, ok := AmountFromText(value); ok {
				rec.AmountMinor = amount
			}
		},
	},
	{
		keywords: []string{"message", "pesan"},
		apply:    func(rec *domain.DonationRecord, value string) { rec.Message = value },
	},
}

func (r fieldRule) matches(lowerName string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(lowerName, kw) {
			return true
		}
	}
	return false
}

// Extract parses msg into a DonationRecord. It never fails: when nothing
// matches the record has Donor "Anonymous" and AmountMinor 0.
func Extract(msg domain.InboundMessage) domain.DonationRecord {
	rec := domain.DonationRecord{
		Donor:     domain.AnonymousDonor,
		Timestamp: domain.FormatTimestamp(msg.CreatedAt),
		SourceID:  msg.ID,
	}

	if att, ok := msg.FirstAttachment(); ok {
		applyFields(&rec, att.Fields)
		if att.HasTitle() {
			applyHeadline(&rec, titlePattern, *att.Title)
		}
	}

	if msg.Content != "" {
		applyHeadline(&rec, textPattern, msg.Content)
	}

	return rec
}

func applyFields(rec *domain.DonationRecord, fields []domain.Field) {
	for _, f := range fields {
		name := strings.ToLower(f.Name)
		for _, rule := range fieldRules {
			if rule.matches(name) {
				rule.apply(rec, f.Value)
				break
			}
		}
	}
}

// applyHeadline overwrites donor and amount when s matches a
// "<donor> donated Rp <amount>" pattern.
func applyHeadline(rec *domain.DonationRecord, pattern *regexp.Regexp, s string) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return
	}
	rec.Donor = m[1]
	rec.AmountMinor = ParseAmount(m[2])
}

// AmountFromText concatenates every run of digits, dots and commas in s, in
// order, and parses the result with ParseAmount. The boolean is false when s
// holds no such run at all.
//
// "Rp 50.000" gives 50000 and "$1,234.56" gives 123456: separators are dropped,
// not interpreted, so decimals become part of the integer.
func AmountFromText(s string) (int64, bool) {
	runs := numericRun.FindAllString(s, -1)
	if len(runs) == 0 {
		return 0, false
	}
	return ParseAmount(strings.Join(runs, "")), true
}

// ParseAmount strips '.' and ',' from s and parses the rest as a base-10
// integer. Anything that does not parse (empty, stray characters, overflow)
// yields 0.
func ParseAmount(s string) int64 {
	digits := separators.Replace(s)
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
