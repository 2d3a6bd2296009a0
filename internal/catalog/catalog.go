package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hl-delta-bot/internal/config"
	"hl-delta-bot/internal/hl/rest"

	"go.uber.org/zap"
)

const defaultTickSize = 0.001

// SpotPosition is the wallet-side leg: total balance and the amount the
// venue currently holds against open orders.
type SpotPosition struct {
	Total         float64
	Hold          float64
	EntryNotional float64
}

// PerpPosition is the derivative leg. Size is signed; short positions are
// negative.
type PerpPosition struct {
	Size             float64
	EntryPrice       float64
	PositionValue    float64
	UnrealizedPnl    float64
	Leverage         float64
	LiquidationPrice float64
	MarginUsed       float64
}

type SpotMarket struct {
	Name        string // venue token name, may differ from the symbol (UBTC for BTC)
	Pair        string
	PairIndex   int
	TokenIndex  int
	SzDecimals  int
	WeiDecimals int
	TickSize    float64
	Position    *SpotPosition
}

type PerpMarket struct {
	Name             string
	Index            int
	SzDecimals       int
	MaxLeverage      int
	TickSize         float64
	FundingHourly    float64
	FundingYearlyPct float64
	Position         *PerpPosition
}

// Instrument pairs the spot and perp markets for one tracked symbol. Either
// side may be nil when the venue metadata did not resolve it.
type Instrument struct {
	Symbol string
	Spot   *SpotMarket
	Perp   *PerpMarket
}

func (i *Instrument) Tradable() bool {
	return i != nil && i.Spot != nil && i.Perp != nil
}

// SpotAssetID is the order-wire asset id for the spot pair.
func (i *Instrument) SpotAssetID() int {
	return 10000 + i.Spot.PairIndex
}

func (i *Instrument) PerpAssetID() int {
	return i.Perp.Index
}

type Catalog struct {
	instruments map[string]*Instrument
	order       []string
	aliases     map[string]string // venue name -> tracked symbol
	log         *zap.Logger
}

// Load resolves the tracked symbols against the venue's spot and perp
// metadata. It fails only when no symbol resolves at all; partially
// resolved instruments are kept with a nil leg and skipped by trading code.
func Load(ctx context.Context, client *rest.Client, symbols []string, overrides map[string]config.InstrumentOverride, log *zap.Logger) (*Catalog, error) {
	if client == nil {
		return nil, errors.New("rest client is required")
	}
	if len(symbols) == 0 {
		return nil, errors.New("no symbols to track")
	}
	spotResp, err := client.InfoAny(ctx, rest.InfoRequest{Type: "spotMeta"})
	if err != nil {
		return nil, fmt.Errorf("spot meta: %w", err)
	}
	perpResp, err := client.InfoAny(ctx, rest.InfoRequest{Type: "meta"})
	if err != nil {
		return nil, fmt.Errorf("perp meta: %w", err)
	}
	tokens, pairs, err := parseSpotMeta(spotResp)
	if err != nil {
		return nil, err
	}
	perps, err := parsePerpMeta(perpResp)
	if err != nil {
		return nil, err
	}
	cat := &Catalog{
		instruments: make(map[string]*Instrument, len(symbols)),
		order:       make([]string, 0, len(symbols)),
		aliases:     make(map[string]string),
		log:         log,
	}
	tradable := 0
	for _, symbol := range symbols {
		override := overrides[symbol]
		inst := resolveInstrument(symbol, override, tokens, pairs, perps)
		cat.instruments[symbol] = inst
		cat.order = append(cat.order, symbol)
		if inst.Spot != nil && inst.Spot.Name != symbol {
			cat.aliases[inst.Spot.Name] = symbol
		}
		if inst.Tradable() {
			tradable++
			continue
		}
		if log != nil {
			log.Warn("instrument did not fully resolve",
				zap.String("symbol", symbol),
				zap.Bool("spot", inst.Spot != nil),
				zap.Bool("perp", inst.Perp != nil))
		}
	}
	if tradable == 0 {
		return nil, errors.New("no tracked instrument resolved against venue metadata")
	}
	return cat, nil
}

// New builds a catalog from already resolved instruments. Callers that talk
// to the venue should use Load instead.
func New(instruments []*Instrument) *Catalog {
	cat := &Catalog{
		instruments: make(map[string]*Instrument, len(instruments)),
		order:       make([]string, 0, len(instruments)),
		aliases:     make(map[string]string),
		log:         zap.NewNop(),
	}
	for _, inst := range instruments {
		cat.instruments[inst.Symbol] = inst
		cat.order = append(cat.order, inst.Symbol)
		if inst.Spot != nil && inst.Spot.Name != inst.Symbol {
			cat.aliases[inst.Spot.Name] = inst.Symbol
		}
	}
	return cat
}

func resolveInstrument(symbol string, override config.InstrumentOverride, tokens map[string]tokenInfo, pairs []pairInfo, perps map[string]perpInfo) *Instrument {
	inst := &Instrument{Symbol: symbol}
	spotName := symbol
	if override.SpotName != "" {
		spotName = override.SpotName
	}
	tick := override.TickSize
	if tick == 0 {
		tick = defaultTickSize
	}
	if token, ok := tokens[spotName]; ok {
		if pair, ok := pairForToken(pairs, token.index); ok {
			szDecimals := token.szDecimals
			if override.IntegerSize {
				szDecimals = 0
			}
			inst.Spot = &SpotMarket{
				Name:        spotName,
				Pair:        spotName + "/USDC",
				PairIndex:   pair.index,
				TokenIndex:  token.index,
				SzDecimals:  szDecimals,
				WeiDecimals: token.weiDecimals,
				TickSize:    tick,
			}
		}
	}
	if perp, ok := perps[symbol]; ok {
		inst.Perp = &PerpMarket{
			Name:        symbol,
			Index:       perp.index,
			SzDecimals:  perp.szDecimals,
			MaxLeverage: perp.maxLeverage,
			TickSize:    tick,
		}
	}
	return inst
}

// Get returns the instrument for a tracked symbol or a venue alias of it.
// Lookup is case-insensitive so operator input like "btc" resolves.
func (c *Catalog) Get(name string) (*Instrument, bool) {
	if inst, ok := c.instruments[name]; ok {
		return inst, true
	}
	if symbol, ok := c.aliases[name]; ok {
		inst, ok := c.instruments[symbol]
		return inst, ok
	}
	for symbol, inst := range c.instruments {
		if strings.EqualFold(symbol, name) {
			return inst, true
		}
	}
	for venue, symbol := range c.aliases {
		if strings.EqualFold(venue, name) {
			inst, ok := c.instruments[symbol]
			return inst, ok
		}
	}
	return nil, false
}

// Symbols returns tracked symbols in configuration order.
func (c *Catalog) Symbols() []string {
	return append([]string(nil), c.order...)
}

// Tradable returns fully resolved instruments in configuration order.
func (c *Catalog) Tradable() []*Instrument {
	out := make([]*Instrument, 0, len(c.order))
	for _, symbol := range c.order {
		if inst := c.instruments[symbol]; inst.Tradable() {
			out = append(out, inst)
		}
	}
	return out
}

// ResolveVenue translates a venue token name back to the tracked symbol.
func (c *Catalog) ResolveVenue(name string) string {
	if symbol, ok := c.aliases[name]; ok {
		return symbol
	}
	return name
}
