package models

import (
	"fmt"
	"hash/fnv"
)

type SecType string

const (
	SecTypeStock  SecType = "STK"
	SecTypeOption SecType = "OPT"
	SecTypeFuture SecType = "FUT"
	SecTypeForex  SecType = "CASH"
	SecTypeIndex  SecType = "IND"
	SecTypeCombo  SecType = "BAG"
)

// Contract identifies a tradable instrument. A contract built by the caller
// is unqualified until the server resolves it to a unique ConID.
type Contract struct {
	ConID           int64   `json:"con_id"`
	Symbol          string  `json:"symbol"`
	SecType         SecType `json:"sec_type"`
	Expiry          string  `json:"expiry"`
	Strike          float64 `json:"strike"`
	Right           string  `json:"right"`
	Multiplier      string  `json:"multiplier"`
	Exchange        string  `json:"exchange"`
	PrimaryExchange string  `json:"primary_exchange"`
	Currency        string  `json:"currency"`
	LocalSymbol     string  `json:"local_symbol"`
	TradingClass    string  `json:"trading_class"`
}

// Key hashes the defining fields so that two independently built but
// semantically equal contracts address the same cache entry.
func (c Contract) Key() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%s|%s|%s|%g|%s|%s|%s|%s|%s",
		c.ConID, c.Symbol, c.SecType, c.Expiry, c.Strike,
		c.Right, c.Multiplier, c.Exchange, c.Currency, c.LocalSymbol)
	return h.Sum64()
}

// Qualified reports whether the server has resolved this contract.
func (c Contract) Qualified() bool {
	return c.ConID > 0
}

func (c Contract) String() string {
	if c.LocalSymbol != "" {
		return fmt.Sprintf("%s(%s %s)", c.SecType, c.LocalSymbol, c.Exchange)
	}
	return fmt.Sprintf("%s(%s %s %s)", c.SecType, c.Symbol, c.Exchange, c.Currency)
}
