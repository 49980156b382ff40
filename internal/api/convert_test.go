package api

import (
	"errors"
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func TestTradeResponse_ToModel(t *testing.T) {
	tests := []struct {
		name    string
		in      TradeResponse
		wantErr bool
	}{
		{
			name: "valid",
			in:   TradeResponse{ID: ptr(int64(1)), Price: "100.5", Qty: "2", QuoteQty: "201", Time: ptr(int64(1700000000000)), IsBuyerMaker: ptr(false)},
		},
		{
			name: "valid without quote qty",
			in:   TradeResponse{ID: ptr(int64(1)), Price: "100.5", Qty: "0", Time: ptr(int64(1700000000000)), IsBuyerMaker: ptr(true)},
		},
		{
			name:    "missing id",
			in:      TradeResponse{Price: "1", Qty: "1", Time: ptr(int64(1)), IsBuyerMaker: ptr(true)},
			wantErr: true,
		},
		{
			name:    "missing time",
			in:      TradeResponse{ID: ptr(int64(1)), Price: "1", Qty: "1", IsBuyerMaker: ptr(true)},
			wantErr: true,
		},
		{
			name:    "missing maker flag",
			in:      TradeResponse{ID: ptr(int64(1)), Price: "1", Qty: "1", Time: ptr(int64(1))},
			wantErr: true,
		},
		{
			name:    "unparsable price",
			in:      TradeResponse{ID: ptr(int64(1)), Price: "abc", Qty: "1", Time: ptr(int64(1)), IsBuyerMaker: ptr(true)},
			wantErr: true,
		},
		{
			name:    "empty qty",
			in:      TradeResponse{ID: ptr(int64(1)), Price: "1", Qty: "", Time: ptr(int64(1)), IsBuyerMaker: ptr(true)},
			wantErr: true,
		},
		{
			name:    "zero price",
			in:      TradeResponse{ID: ptr(int64(1)), Price: "0", Qty: "1", Time: ptr(int64(1)), IsBuyerMaker: ptr(true)},
			wantErr: true,
		},
		{
			name:    "negative qty",
			in:      TradeResponse{ID: ptr(int64(1)), Price: "1", Qty: "-1", Time: ptr(int64(1)), IsBuyerMaker: ptr(true)},
			wantErr: true,
		},
		{
			name:    "bad quote qty",
			in:      TradeResponse{ID: ptr(int64(1)), Price: "1", Qty: "1", QuoteQty: "x", Time: ptr(int64(1)), IsBuyerMaker: ptr(true)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.ToModel("BTCUSDT")
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedTrade) {
					t.Errorf("ToModel() error = %v, want ErrMalformedTrade", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToModel() unexpected error: %v", err)
			}
			if got.ID != *tt.in.ID {
				t.Errorf("ID = %d, want %d", got.ID, *tt.in.ID)
			}
			if got.Price.String() != tt.in.Price {
				t.Errorf("Price = %s, want %s", got.Price, tt.in.Price)
			}
			if got.IsBuyerMaker != *tt.in.IsBuyerMaker {
				t.Errorf("IsBuyerMaker = %v, want %v", got.IsBuyerMaker, *tt.in.IsBuyerMaker)
			}
			if !got.Time.Equal(time.UnixMilli(*tt.in.Time)) {
				t.Errorf("Time = %v, want %v", got.Time, time.UnixMilli(*tt.in.Time))
			}
		})
	}
}

func TestStreamTrade_ToModel(t *testing.T) {
	in := StreamTrade{
		EventType:    "trade",
		Symbol:       "btcusdt",
		TradeID:      ptr(int64(42)),
		Price:        "64000.01",
		Qty:          "0.003",
		TradeTime:    ptr(int64(1700000000123)),
		IsBuyerMaker: ptr(true),
	}

	got, err := in.ToModel()
	if err != nil {
		t.Fatalf("ToModel() unexpected error: %v", err)
	}
	if got.Symbol != "BTCUSDT" {
		t.Errorf("Symbol = %q, want BTCUSDT", got.Symbol)
	}
	if got.ID != 42 {
		t.Errorf("ID = %d, want 42", got.ID)
	}
	if got.Time.UnixMilli() != 1700000000123 {
		t.Errorf("Time = %d, want 1700000000123", got.Time.UnixMilli())
	}

	in.TradeID = nil
	if _, err := in.ToModel(); !errors.Is(err, ErrMalformedTrade) {
		t.Errorf("ToModel() error = %v, want ErrMalformedTrade", err)
	}
}

func TestToTrades(t *testing.T) {
	records := []TradeResponse{
		{ID: ptr(int64(1)), Price: "10", Qty: "1", Time: ptr(int64(1000)), IsBuyerMaker: ptr(false)},
		{ID: ptr(int64(2)), Price: "", Qty: "1", Time: ptr(int64(2000)), IsBuyerMaker: ptr(false)},
		{ID: ptr(int64(3)), Price: "11", Qty: "2", Time: ptr(int64(3000)), IsBuyerMaker: ptr(true)},
	}

	trades, dropped := ToTrades("ETHUSDT", records)
	if len(trades) != 2 {
		t.Errorf("len(trades) = %d, want 2", len(trades))
	}
	if len(dropped) != 1 {
		t.Errorf("len(dropped) = %d, want 1", len(dropped))
	}
}

func TestMillisToTime(t *testing.T) {
	got := MillisToTime(1700000000123)
	if got.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", got.Location())
	}
	if got.UnixMilli() != 1700000000123 {
		t.Errorf("UnixMilli() = %d, want 1700000000123", got.UnixMilli())
	}
}
