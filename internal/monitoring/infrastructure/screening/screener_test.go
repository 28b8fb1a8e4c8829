package screening

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/amlplatform/internal/monitoring/domain"
	screeningdomain "github.com/wyfcoding/amlplatform/internal/screening/domain"
)

type recorder struct {
	txnID   string
	parties []screeningdomain.Party
	calls   int
}

func (r *recorder) ScreenParties(_ context.Context, txnID string, parties []screeningdomain.Party) (int, error) {
	r.calls++
	r.txnID = txnID
	r.parties = parties
	return len(parties), nil
}

func TestScreenTransactionParties(t *testing.T) {
	rec := &recorder{}
	s := NewScreener(rec)

	n, err := s.ScreenTransactionParties(context.Background(), "TX-1", []domain.Party{
		{CustomerID: "C-1", CustomerType: domain.CustomerTypeIndividual, FirstName: "Ali", LastName: "Hassan"},
		{CustomerID: "C-2", CustomerType: "CORPORATE", CompanyName: "Global Trading LLC"},
		{CustomerID: "C-3", CustomerType: "CORPORATE"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "TX-1", rec.txnID)
	assert.Equal(t, []screeningdomain.Party{
		{CustomerID: "C-1", Name: "Ali Hassan"},
		{CustomerID: "C-2", Name: "Global Trading LLC"},
	}, rec.parties)
}

func TestScreenTransactionPartiesSkipsEmpty(t *testing.T) {
	rec := &recorder{}
	n, err := NewScreener(rec).ScreenTransactionParties(context.Background(), "TX-1", []domain.Party{{CustomerID: "C-3"}})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, rec.calls)
}

func TestScreenTransactionPartiesKeepsNameVerbatim(t *testing.T) {
	rec := &recorder{}
	n, err := NewScreener(rec).ScreenTransactionParties(context.Background(), "TX-1", []domain.Party{
		{CustomerID: "C-1", CustomerType: domain.CustomerTypeIndividual, FirstName: "Osama"},
		{CustomerID: "C-2", CustomerType: domain.CustomerTypeIndividual},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []screeningdomain.Party{{CustomerID: "C-1", Name: "Osama "}}, rec.parties)
}
