package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPropertyType_Supports(t *testing.T) {
	tests := []struct {
		typ  PropertyType
		kind TransactionKind
		want bool
	}{
		{PropertyPG, KindSubscription, true},
		{PropertyPG, KindLease, false},
		{PropertyLand, KindSale, true},
		{PropertyLand, KindLease, true},
		{PropertyLand, KindSubscription, false},
		{PropertyApartment, KindSubscription, true},
		{PropertyVilla, KindSale, true},
		{PropertyVilla, TransactionKind("Barter"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ)+"/"+string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.Supports(tt.kind))
		})
	}
}

func TestProperty_Eligible(t *testing.T) {
	p := Property{Status: StatusAvailable, Approval: ApprovalApproved}
	assert.True(t, p.Eligible())

	p.Approval = ApprovalPending
	assert.False(t, p.Eligible())

	p.Approval = ApprovalApproved
	p.Status = StatusDisabled
	assert.False(t, p.Eligible())
}

func TestTransaction_CheckAndActive(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	lease := Transaction{ID: uuid.New(), Kind: KindLease, Tenancy: &Tenancy{StartDate: start, EndDate: start.AddDate(0, 6, -1)}}
	sale := Transaction{ID: uuid.New(), Kind: KindSale, Sale: &SaleRecord{SaleDate: start}}

	assert.NoError(t, lease.Check())
	assert.NoError(t, sale.Check())
	assert.True(t, lease.Active())
	assert.True(t, sale.Active())

	mixed := lease
	mixed.Sale = sale.Sale
	assert.Error(t, mixed.Check())

	bare := Transaction{ID: uuid.New(), Kind: KindSale}
	assert.Error(t, bare.Check())

	lease.Tenancy.Termination = &Termination{At: start, By: "owner-1", Role: TerminatedByOwner}
	assert.False(t, lease.Active())
	assert.True(t, TransactionFilter{}.Matches(&lease))
	assert.False(t, TransactionFilter{ActiveOnly: true}.Matches(&lease))
}

func TestTenancy_PastEnd(t *testing.T) {
	ten := Tenancy{EndDate: time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)}

	assert.False(t, ten.PastEnd(time.Date(2024, time.June, 30, 23, 59, 0, 0, time.UTC)))
	assert.True(t, ten.PastEnd(time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)))
}

func TestClone_IsDeep(t *testing.T) {
	bid := MustMoney("100")
	app := Application{Bid: &bid, Documents: []string{"a.pdf"}}
	cp := app.Clone()
	*cp.Bid = MustMoney("1")
	cp.Documents[0] = "b.pdf"
	assert.Equal(t, MustMoney("100"), *app.Bid)
	assert.Equal(t, "a.pdf", app.Documents[0])

	tx := Transaction{Kind: KindLease, Tenancy: &Tenancy{LastPaidPeriod: 1}}
	txc := tx.Clone()
	txc.Tenancy.LastPaidPeriod = 5
	assert.Equal(t, 1, tx.Tenancy.LastPaidPeriod)
}

func TestPropertyFilter_Matches(t *testing.T) {
	verified := true
	p := Property{
		OwnerID:  "owner-1",
		Status:   StatusAvailable,
		Approval: ApprovalApproved,
		Type:     PropertyVilla,
		Kind:     KindSale,
		Verified: true,
		Location: Location{Point: NewPoint(9.93, 76.26)},
	}

	assert.True(t, PropertyFilter{OwnerID: "owner-1", Verified: &verified}.Matches(&p))
	assert.False(t, PropertyFilter{Kind: KindLease}.Matches(&p))
	assert.True(t, PropertyFilter{Near: &Radius{Center: NewPoint(9.931, 76.261), Meters: 500}}.Matches(&p))
	assert.False(t, PropertyFilter{Near: &Radius{Center: NewPoint(10.5, 76.26), Meters: 500}}.Matches(&p))
}
