package goaml

import (
	"encoding/xml"
	"time"

	"github.com/wyfcoding/amlplatform/internal/casemanagement/domain"
)

// Namespace goAML 报文命名空间
const Namespace = "http://www.unodc.org/goaml/XMLSchema/v1.0"

type report struct {
	XMLName     xml.Name    `xml:"goAMLReport"`
	Xmlns       string      `xml:"xmlns,attr"`
	Header      header      `xml:"ReportHeader"`
	Transaction transaction `xml:"Transaction"`
}

type header struct {
	Version        string `xml:"Version"`
	ReportCode     string `xml:"ReportCode"`
	SubmissionDate string `xml:"SubmissionDate"`
	Currency       string `xml:"Currency"`
}

type transaction struct {
	Number     string     `xml:"TransactionNumber"`
	Date       string     `xml:"TransactionDate"`
	Amount     string     `xml:"TransactionAmount"`
	From       party      `xml:"From"`
	To         party      `xml:"To"`
	Narrative  string     `xml:"Narrative,omitempty"`
	Indicators indicators `xml:"Indicators"`
}

type party struct {
	Person *person `xml:"Person,omitempty"`
	Entity *entity `xml:"Entity,omitempty"`
}

type person struct {
	FirstName string `xml:"FirstName"`
	LastName  string `xml:"LastName"`
	IDNumber  string `xml:"IdNumber"`
}

type entity struct {
	Name                string `xml:"Name"`
	IncorporationNumber string `xml:"IncorporationNumber"`
}

type indicators struct {
	Items []string `xml:"Indicator"`
}

func toParty(p domain.PartyInfo) party {
	if p.IsIndividual() {
		return party{Person: &person{FirstName: p.FirstName, LastName: p.LastName, IDNumber: p.IDNumber}}
	}
	return party{Entity: &entity{Name: p.CompanyName, IncorporationNumber: p.IncorporationNumber}}
}

// BuildSTR 生成 STR 报文
func BuildSTR(r *domain.SuspiciousActivityReport, submittedAt time.Time) ([]byte, error) {
	txn := r.Transaction
	number := txn.ReferenceNumber
	if number == "" {
		number = txn.TransactionID
	}
	currency := txn.Currency
	if currency == "" {
		currency = "AED"
	}

	doc := report{
		Xmlns: Namespace,
		Header: header{
			Version:        "1.0",
			ReportCode:     r.ReportCode,
			SubmissionDate: submittedAt.UTC().Format(time.RFC3339),
			Currency:       currency,
		},
		Transaction: transaction{
			Number:     number,
			Date:       txn.TransactionDate.UTC().Format(time.RFC3339),
			Amount:     txn.Amount.StringFixed(2),
			From:       toParty(txn.Originator),
			To:         toParty(txn.Beneficiary),
			Narrative:  r.Narrative,
			Indicators: indicators{Items: r.Indicators},
		},
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
