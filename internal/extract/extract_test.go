package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LordJunedGanteng/saweriabotjuned/internal/domain"
)

var createdAt = time.Date(2024, 5, 1, 10, 0, 0, 123_000_000, time.UTC)

func newMessage(content string, attachments ...domain.Attachment) domain.InboundMessage {
	return domain.InboundMessage{
		ID:          "1234567890",
		Content:     content,
		Attachments: attachments,
		CreatedAt:   createdAt,
	}
}

func TestExtract_NothingMatches(t *testing.T) {
	rec := Extract(newMessage("hello world"))

	assert.Equal(t, domain.AnonymousDonor, rec.Donor)
	assert.Zero(t, rec.AmountMinor)
	assert.Empty(t, rec.Message)
	assert.False(t, rec.HasAmount())
}

func TestExtract_EmptyMessage(t *testing.T) {
	rec := Extract(newMessage(""))

	assert.Equal(t, domain.AnonymousDonor, rec.Donor)
	assert.Zero(t, rec.AmountMinor)
	assert.Equal(t, "1234567890", rec.SourceID)
}

func TestExtract_CopiesIdentity(t *testing.T) {
	rec := Extract(newMessage(""))

	assert.Equal(t, "2024-05-01T10:00:00.123Z", rec.Timestamp)
	assert.Equal(t, "1234567890", rec.SourceID)
}

func TestExtract_TimestampIsUTC(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)
	msg := newMessage("")
	msg.CreatedAt = time.Date(2024, 5, 1, 17, 0, 0, 0, jakarta)

	assert.Equal(t, "2024-05-01T10:00:00.000Z", Extract(msg).Timestamp)
}

func TestExtract_EmbedFields(t *testing.T) {
	msg := newMessage("", domain.Attachment{
		Fields: []domain.Field{
			{Name: "Donor Name", Value: "Alice"},
			{Name: "Jumlah", Value: "Rp 50.000"},
			{Name: "Pesan", Value: "Thanks!"},
		},
	})

	rec := Extract(msg)

	assert.Equal(t, "Alice", rec.Donor)
	assert.Equal(t, int64(50000), rec.AmountMinor)
	assert.Equal(t, "Thanks!", rec.Message)
}

func TestExtract_EmbedFieldsCaseInsensitive(t *testing.T) {
	msg := newMessage("", domain.Attachment{
		Fields: []domain.Field{
			{Name: "NAMA", Value: "Budi"},
			{Name: "AMOUNT", Value: "Rp 5.000"},
			{Name: "Message", Value: "semangat"},
		},
	})

	rec := Extract(msg)

	assert.Equal(t, "Budi", rec.Donor)
	assert.Equal(t, int64(5000), rec.AmountMinor)
	assert.Equal(t, "semangat", rec.Message)
}

func TestExtract_UnknownFieldsIgnored(t *testing.T) {
	msg := newMessage("", domain.Attachment{
		Fields: []domain.Field{
			{Name: "Platform", Value: "Saweria 9999"},
			{Name: "Jumlah", Value: "Rp 1.000"},
		},
	})

	rec := Extract(msg)

	assert.Equal(t, domain.AnonymousDonor, rec.Donor)
	assert.Equal(t, int64(1000), rec.AmountMinor)
}

func TestExtract_FirstRuleWinsWithinField(t *testing.T) {
	// "Donor amount" matches both the donor and the amount rule.
	msg := newMessage("", domain.Attachment{
		Fields: []domain.Field{{Name: "Donor amount", Value: "Rp 7.000"}},
	})

	rec := Extract(msg)

	assert.Equal(t, "Rp 7.000", rec.Donor)
	assert.Zero(t, rec.AmountMinor)
}

func TestExtract_LaterFieldOverrides(t *testing.T) {
	msg := newMessage("", domain.Attachment{
		Fields: []domain.Field{
			{Name: "Donor", Value: "First"},
			{Name: "Nama", Value: "Second"},
		},
	})

	assert.Equal(t, "Second", Extract(msg).Donor)
}

func TestExtract_AmountFieldWithoutDigitsLeavesAmount(t *testing.T) {
	msg := newMessage("", domain.Attachment{
		Fields: []domain.Field{
			{Name: "Amount", Value: "Rp 2.500"},
			{Name: "Jumlah", Value: "tidak ada"},
		},
	})

	assert.Equal(t, int64(2500), Extract(msg).AmountMinor)
}

func TestExtract_AmountFieldWithOnlySeparatorsResetsAmount(t *testing.T) {
	msg := newMessage("", domain.Attachment{
		Fields: []domain.Field{
			{Name: "Amount", Value: "Rp 2.500"},
			{Name: "Jumlah", Value: "..."},
		},
	})

	assert.Zero(t, Extract(msg).AmountMinor)
}

func TestExtract_OnlyFirstAttachmentUsed(t *testing.T) {
	msg := newMessage("",
		domain.Attachment{Fields: []domain.Field{{Name: "Donor", Value: "Alice"}}},
		domain.Attachment{Title: domain.StringPtr("Mallory donated Rp 99.000")},
	)

	rec := Extract(msg)

	assert.Equal(t, "Alice", rec.Donor)
	assert.Zero(t, rec.AmountMinor)
}

func TestExtract_EmbedTitle(t *testing.T) {
	msg := newMessage("", domain.Attachment{Title: domain.StringPtr("Bob donated Rp 25,000")})

	rec := Extract(msg)

	assert.Equal(t, "Bob", rec.Donor)
	assert.Equal(t, int64(25000), rec.AmountMinor)
}

func TestExtract_EmbedTitleOverridesFields(t *testing.T) {
	msg := newMessage("", domain.Attachment{
		Title: domain.StringPtr("bob DONATED rp 25.000"),
		Fields: []domain.Field{
			{Name: "Donor", Value: "Alice"},
			{Name: "Amount", Value: "Rp 50.000"},
			{Name: "Message", Value: "hi"},
		},
	})

	rec := Extract(msg)

	assert.Equal(t, "bob", rec.Donor)
	assert.Equal(t, int64(25000), rec.AmountMinor)
	assert.Equal(t, "hi", rec.Message)
}

func TestExtract_NonMatchingTitleKeepsFields(t *testing.T) {
	msg := newMessage("", domain.Attachment{
		Title:  domain.StringPtr("New donation!"),
		Fields: []domain.Field{{Name: "Donor", Value: "Alice"}},
	})

	assert.Equal(t, "Alice", Extract(msg).Donor)
}

func TestExtract_EmptyTitleIsAbsent(t *testing.T) {
	msg := newMessage("", domain.Attachment{Title: domain.StringPtr("")})

	rec := Extract(msg)

	assert.Equal(t, domain.AnonymousDonor, rec.Donor)
}

func TestExtract_TextBody(t *testing.T) {
	rec := Extract(newMessage("💰 Carol donated Rp 10.500"))

	assert.Equal(t, "Carol", rec.Donor)
	assert.Equal(t, int64(10500), rec.AmountMinor)
}

func TestExtract_TextBodyNonBreakingSpace(t *testing.T) {
	rec := Extract(newMessage("💰 Carol\u00a0donated Rp\u00a010.500"))

	assert.Equal(t, "Carol", rec.Donor)
	assert.Equal(t, int64(10500), rec.AmountMinor)
}

func TestExtract_EmbedTitleUnicodeSpaces(t *testing.T) {
	msg := newMessage("", domain.Attachment{Title: domain.StringPtr("Bob\u2009donated\u00a0Rp\u00a025.000")})

	rec := Extract(msg)

	assert.Equal(t, "Bob", rec.Donor)
	assert.Equal(t, int64(25000), rec.AmountMinor)
}

func TestExtract_TextBodyOverridesAttachment(t *testing.T) {
	msg := newMessage("💰 Carol donated Rp 10.500", domain.Attachment{
		Title: domain.StringPtr("Bob donated Rp 25,000"),
		Fields: []domain.Field{
			{Name: "Donor", Value: "Alice"},
			{Name: "Jumlah", Value: "Rp 50.000"},
			{Name: "Pesan", Value: "keep it up"},
		},
	})

	rec := Extract(msg)

	assert.Equal(t, "Carol", rec.Donor)
	assert.Equal(t, int64(10500), rec.AmountMinor)
	assert.Equal(t, "keep it up", rec.Message)
}

func TestExtract_TextBodyWithoutMarkerIgnored(t *testing.T) {
	rec := Extract(newMessage("Carol donated Rp 10.500"))

	assert.Equal(t, domain.AnonymousDonor, rec.Donor)
	assert.Zero(t, rec.AmountMinor)
}

func TestExtract_MultiWordDonor(t *testing.T) {
	rec := Extract(newMessage("💰 Someone Very Kind donated Rp 1.000.000 with love"))

	assert.Equal(t, "Someone Very Kind", rec.Donor)
	assert.Equal(t, int64(1000000), rec.AmountMinor)
}

func TestExtract_Idempotent(t *testing.T) {
	msg := newMessage("💰 Carol donated Rp 10.500", domain.Attachment{
		Title:  domain.StringPtr("Bob donated Rp 25,000"),
		Fields: []domain.Field{{Name: "Pesan", Value: "hi"}},
	})

	first := Extract(msg)
	second := Extract(msg)

	require.Equal(t, first, second)
}

func TestAmountFromText(t *testing.T) {
	cases := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"Rp 50.000", 50000, true},
		{"$1,234.56", 123456, true},
		{"Rp 1.000 + Rp 500", 1000500, true},
		{"50", 50, true},
		{"no digits here", 0, false},
		{"", 0, false},
		{"...", 0, true},
		{"99999999999999999999999", 0, true},
	}
	for _, tc := range cases {
		got, ok := AmountFromText(tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
		assert.Equal(t, tc.wantOK, ok, "input %q", tc.in)
	}
}

func TestParseAmount(t *testing.T) {
	assert.Equal(t, int64(25000), ParseAmount("25,000"))
	assert.Equal(t, int64(10500), ParseAmount("10.500"))
	assert.Equal(t, int64(7), ParseAmount("007"))
	assert.Zero(t, ParseAmount(""))
	assert.Zero(t, ParseAmount(".,"))
	assert.Zero(t, ParseAmount("12a"))
}
