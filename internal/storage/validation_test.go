package storage

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/basket-rules/internal/model"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{
			name:    "valid context",
			ctx:     context.Background(),
			wantErr: false,
		},
		{
			name:    "nil context",
			ctx:     nil,
			wantErr: true,
		},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRecord(t *testing.T) {
	valid := func() model.SalesRecord {
		return model.SalesRecord{
			Date:              time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC),
			PointOfSaleID:     "101",
			ProductFamilyID:   "F1",
			ProductCategoryID: "C1",
			SellOutUnits:      2,
			Year:              2022,
			Quarter:           1,
		}
	}

	tests := []struct {
		mutate  func(*model.SalesRecord)
		name    string
		errMsg  string
		wantErr bool
	}{
		{
			name:   "valid record",
			mutate: func(*model.SalesRecord) {},
		},
		{
			name:    "missing date",
			mutate:  func(r *model.SalesRecord) { r.Date = time.Time{} },
			wantErr: true,
			errMsg:  "missing date",
		},
		{
			name:    "blank outlet",
			mutate:  func(r *model.SalesRecord) { r.PointOfSaleID = "  " },
			wantErr: true,
			errMsg:  "missing point of sale",
		},
		{
			name: "no product identifiers",
			mutate: func(r *model.SalesRecord) {
				r.ProductFamilyID = ""
				r.ProductCategoryID = ""
			},
			wantErr: true,
			errMsg:  "missing product identifiers",
		},
		{
			name:   "category only",
			mutate: func(r *model.SalesRecord) { r.ProductFamilyID = "" },
		},
		{
			name:    "quarter out of range",
			mutate:  func(r *model.SalesRecord) { r.Quarter = 0 },
			wantErr: true,
			errMsg:  "quarter 0",
		},
		{
			name:    "missing year",
			mutate:  func(r *model.SalesRecord) { r.Year = 0 },
			wantErr: true,
			errMsg:  "missing year",
		},
		{
			name:    "NaN units",
			mutate:  func(r *model.SalesRecord) { r.SellOutUnits = math.NaN() },
			wantErr: true,
			errMsg:  "not finite",
		},
		{
			name:   "negative units",
			mutate: func(r *model.SalesRecord) { r.SellOutUnits = -2 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := valid()
			tt.mutate(&rec)
			err := validateRecord(&rec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRecord) {
					t.Errorf("validateRecord() error = %v, want ErrInvalidRecord", err)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("validateRecord() error = %v, want message containing %q", err, tt.errMsg)
				}
			}
		})
	}
}

func TestValidateRecords(t *testing.T) {
	if err := validateRecords(nil); !errors.Is(err, ErrNilParameter) {
		t.Errorf("validateRecords(nil) error = %v, want ErrNilParameter", err)
	}
	if err := validateRecords([]model.SalesRecord{}); !errors.Is(err, ErrEmptySlice) {
		t.Errorf("validateRecords([]) error = %v, want ErrEmptySlice", err)
	}

	records := createTestRecords("101", 2022, 1, 3)
	records[2].Year = 0
	err := validateRecords(records)
	if err == nil || !strings.Contains(err.Error(), "index 2") {
		t.Errorf("validateRecords() error = %v, want index 2", err)
	}
}
