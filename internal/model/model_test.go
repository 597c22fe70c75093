package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSalesRecord_GenerateHash(t *testing.T) {
	rec := SalesRecord{
		Date:              time.Date(2021, 1, 4, 9, 30, 0, 0, time.UTC),
		PointOfSaleID:     "101",
		ProductFamilyID:   "X",
		ProductCategoryID: "C1",
		SellOutUnits:      2,
	}

	same := rec
	same.Date = time.Date(2021, 1, 4, 17, 0, 0, 0, time.UTC)
	assert.Equal(t, rec.GenerateHash(), same.GenerateHash(), "time of day is ignored")

	other := rec
	other.SellOutUnits = 3
	assert.NotEqual(t, rec.GenerateHash(), other.GenerateHash())
	assert.Len(t, rec.GenerateHash(), 64)
}

func TestSalesRecord_Item(t *testing.T) {
	rec := SalesRecord{ProductFamilyID: "X", ProductCategoryID: "C1"}
	assert.Equal(t, "X", rec.Item(GranularityFamily))
	assert.Equal(t, "C1", rec.Item(GranularityCategory))
}

func TestSalesRecord_TransactionKey(t *testing.T) {
	morning := SalesRecord{Date: time.Date(2021, 3, 31, 8, 0, 0, 0, time.UTC)}
	evening := SalesRecord{Date: time.Date(2021, 3, 31, 22, 0, 0, 0, time.UTC)}
	assert.Equal(t, "2021-03-31", morning.TransactionKey())
	assert.Equal(t, morning.TransactionKey(), evening.TransactionKey())
}

func TestQuarterOf(t *testing.T) {
	tests := []struct {
		month time.Month
		want  int
	}{
		{time.January, 1}, {time.March, 1}, {time.April, 2},
		{time.September, 3}, {time.October, 4}, {time.December, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuarterOf(time.Date(2022, tt.month, 15, 0, 0, 0, 0, time.UTC)), tt.month.String())
	}
}

func TestFilter_Matches(t *testing.T) {
	f := Filter{PointOfSaleID: "101", Year: 2021, Quarter: 1}
	rec := SalesRecord{PointOfSaleID: "101", Year: 2021, Quarter: 1}
	assert.True(t, f.Matches(rec))

	rec.Quarter = 2
	assert.False(t, f.Matches(rec))
	assert.Equal(t, "pos=101 year=2021 Q1", f.String())
}

func TestParseGranularity(t *testing.T) {
	tests := []struct {
		in      string
		want    Granularity
		wantErr bool
	}{
		{in: "ProductFamily_ID", want: GranularityFamily},
		{in: " family ", want: GranularityFamily},
		{in: "CATEGORY", want: GranularityCategory},
		{in: "product_category", want: GranularityCategory},
		{in: "brand", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGranularity(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownGranularity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGranularity_Label(t *testing.T) {
	assert.Equal(t, "Product Family", GranularityFamily.Label())
	assert.Equal(t, "Product Category", GranularityCategory.Label())
	assert.Equal(t, "other", Granularity("other").Label())
	assert.Len(t, Granularities(), 2)
}
