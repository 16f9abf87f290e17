package hyperliquid

import (
	"strconv"

	"github.com/0xtitan/perpquote/internal/oss"
	"github.com/0xtitan/perpquote/pkg/types"
)

// wireLevel is one {"px","sz","n"} entry in an l2Book message's levels
// array, grounded on ws_handlers/orderbook.py's refresh.
type wireLevel struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

type l2BookMsg struct {
	Coin   string         `json:"coin"`
	Time   int64          `json:"time"`
	Levels [2][]wireLevel `json:"levels"` // [0]=bids, [1]=asks
}

func (m l2BookMsg) toDelta() types.BookDelta {
	bids := make([]types.BookLevel, 0, len(m.Levels[0]))
	for _, l := range m.Levels[0] {
		bids = append(bids, types.BookLevel{Price: parseFloat(l.Px), Size: parseFloat(l.Sz)})
	}
	var asks []types.BookLevel
	if len(m.Levels) > 1 {
		asks = make([]types.BookLevel, 0, len(m.Levels[1]))
		for _, l := range m.Levels[1] {
			asks = append(asks, types.BookLevel{Price: parseFloat(l.Px), Size: parseFloat(l.Sz)})
		}
	}
	return types.BookDelta{
		Symbol:    m.Coin,
		Bids:      bids,
		Asks:      asks,
		Timestamp: m.Time,
		UpdateID:  m.Time,
	}
}

// tradeMsg is one entry of the trades channel's data array, grounded on
// ws_handlers/trades.py's refresh.
type tradeMsg struct {
	Coin string `json:"coin"`
	Side string `json:"side"` // "B" (buy-taker) / "A" (sell-taker)
	Px   string `json:"px"`
	Sz   string `json:"sz"`
	Time int64  `json:"time"`
}

func (m tradeMsg) toTrade() types.Trade {
	side := types.Buy
	if m.Side == "A" {
		side = types.Sell
	}
	return types.Trade{
		Timestamp: m.Time,
		Side:      side,
		Price:     parseFloat(m.Px),
		Size:      parseFloat(m.Sz),
	}
}

// candleMsg mirrors the venue's single-letter OHLCV keys, grounded on
// ws_handlers/candle.py's refresh/process.
type candleMsg struct {
	T  int64  `json:"t"`
	T2 int64  `json:"T"`
	O  string `json:"o"`
	H  string `json:"h"`
	L  string `json:"l"`
	C  string `json:"c"`
	V  string `json:"v"`
	N  int64  `json:"n"`
}

func (m candleMsg) toCandle() types.Candle {
	return types.Candle{
		OpenTime:  m.T,
		CloseTime: m.T2,
		Open:      parseFloat(m.O),
		High:      parseFloat(m.H),
		Low:       parseFloat(m.L),
		Close:     parseFloat(m.C),
		Volume:    parseFloat(m.V),
		Trades:    m.N,
	}
}

// wireOrder is the nested "order" object within an orderUpdates entry.
type wireOrder struct {
	Coin      string `json:"coin"`
	Side      string `json:"side"`
	LimitPx   string `json:"limitPx"`
	Sz        string `json:"sz"`
	Oid       int64  `json:"oid"`
	Cloid     string `json:"cloid"`
	Timestamp int64  `json:"timestamp"`
}

type orderUpdateMsg struct {
	Order           wireOrder `json:"order"`
	Status          string    `json:"status"` // open|triggered|filled|canceled|rejected|marginCanceled
	StatusTimestamp int64     `json:"statusTimestamp"`
}

func (m orderUpdateMsg) toOrderUpdate() types.OrderUpdate {
	side := types.Buy
	if m.Order.Side == "A" {
		side = types.Sell
	}
	u := types.OrderUpdate{
		Symbol:       m.Order.Coin,
		VenueOrderID: strconv.FormatInt(m.Order.Oid, 10),
		Side:         side,
		Price:        parseFloat(m.Order.LimitPx),
		Size:         parseFloat(m.Order.Sz),
		Status:       m.Status,
		Timestamp:    m.StatusTimestamp,
	}
	if m.Order.Cloid != "" {
		if id, err := oss.ParseCloid(m.Order.Cloid); err == nil {
			u.ClientOrderID = id
			u.HasClientID = true
		}
	}
	return u
}

// wireFill is one entry of a userFills message's fills array, grounded on
// ws_handlers/position.py's userFills branch.
type wireFill struct {
	Coin          string `json:"coin"`
	Side          string `json:"side"`
	Px            string `json:"px"`
	Sz            string `json:"sz"`
	Time          int64  `json:"time"`
	StartPosition string `json:"startPosition"`
}

type userFillsMsg struct {
	User       string     `json:"user"`
	IsSnapshot bool       `json:"isSnapshot"`
	Fills      []wireFill `json:"fills"`
}

func (m wireFill) toFill() types.Fill {
	side := types.Buy
	if m.Side == "A" {
		side = types.Sell
	}
	return types.Fill{
		Symbol:       m.Coin,
		Side:         side,
		Price:        parseFloat(m.Px),
		Size:         parseFloat(m.Sz),
		StartingSize: parseFloat(m.StartPosition),
		Timestamp:    m.Time,
	}
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
