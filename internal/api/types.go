package api

// TradeResponse is one element of GET /api/v3/historicalTrades.
// Pointer fields distinguish a missing field from a zero value.
type TradeResponse struct {
	ID           *int64 `json:"id"`
	Price        string `json:"price"`
	Qty          string `json:"qty"`
	QuoteQty     string `json:"quoteQty"`
	Time         *int64 `json:"time"`
	IsBuyerMaker *bool  `json:"isBuyerMaker"`
	IsBestMatch  bool   `json:"isBestMatch"`
}

// StreamTrade is the payload of the <symbol>@trade websocket stream.
type StreamTrade struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      *int64 `json:"t"`
	Price        string `json:"p"`
	Qty          string `json:"q"`
	TradeTime    *int64 `json:"T"`
	IsBuyerMaker *bool  `json:"m"`
	IsBestMatch  bool   `json:"M"`
}

// CombinedStreamMessage wraps payloads delivered on /stream?streams=...
type CombinedStreamMessage struct {
	Stream string      `json:"stream"`
	Data   StreamTrade `json:"data"`
}
