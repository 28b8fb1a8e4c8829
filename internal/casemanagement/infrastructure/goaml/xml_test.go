package goaml

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/amlplatform/internal/casemanagement/domain"
)

func sampleReport() *domain.SuspiciousActivityReport {
	return &domain.SuspiciousActivityReport{
		ReportID:   "R-1",
		ReportCode: "STR",
		CaseNumber: "CASE-1",
		Narrative:  "Repeated cash deposits below threshold",
		Indicators: []string{"STRUCTURING", "RAPID_MOVEMENT"},
		Transaction: domain.TransactionInfo{
			TransactionID:   "TX-1",
			Amount:          decimal.RequireFromString("45000.5"),
			TransactionDate: time.Date(2026, 2, 27, 9, 30, 0, 0, time.UTC),
			Originator:      domain.PartyInfo{Type: "INDIVIDUAL", FirstName: "Ali", LastName: "Hassan", IDNumber: "784-1"},
			Beneficiary:     domain.PartyInfo{Type: "CORPORATE", CompanyName: "Acme LLC", IncorporationNumber: "INC-9"},
		},
	}
}

func TestBuildSTR(t *testing.T) {
	body, err := BuildSTR(sampleReport(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.HasPrefix(text, xml.Header))
	assert.Contains(t, text, `xmlns="`+Namespace+`"`)
	assert.Contains(t, text, "<ReportCode>STR</ReportCode>")
	assert.Contains(t, text, "<Currency>AED</Currency>")
	assert.Contains(t, text, "<TransactionNumber>TX-1</TransactionNumber>")
	assert.Contains(t, text, "<TransactionAmount>45000.50</TransactionAmount>")

	var doc report
	require.NoError(t, xml.Unmarshal(body, &doc))
	require.NotNil(t, doc.Transaction.From.Person)
	assert.Nil(t, doc.Transaction.From.Entity)
	assert.Equal(t, "Hassan", doc.Transaction.From.Person.LastName)
	require.NotNil(t, doc.Transaction.To.Entity)
	assert.Equal(t, "Acme LLC", doc.Transaction.To.Entity.Name)
	assert.Equal(t, []string{"STRUCTURING", "RAPID_MOVEMENT"}, doc.Transaction.Indicators.Items)
	assert.Equal(t, "2026-03-01T12:00:00Z", doc.Header.SubmissionDate)
}

func TestBuildSTRPrefersReferenceNumber(t *testing.T) {
	r := sampleReport()
	r.Transaction.ReferenceNumber = "REF-42"
	r.Transaction.Currency = "USD"

	body, err := BuildSTR(r, time.Now())
	require.NoError(t, err)
	assert.Contains(t, string(body), "<TransactionNumber>REF-42</TransactionNumber>")
	assert.Contains(t, string(body), "<Currency>USD</Currency>")
}
