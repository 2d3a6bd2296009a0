package catalog

import (
	"errors"
	"strconv"
	"strings"
)

type tokenInfo struct {
	index       int
	szDecimals  int
	weiDecimals int
}

type pairInfo struct {
	index      int
	baseToken  int
	quoteToken int
}

type perpInfo struct {
	index       int
	szDecimals  int
	maxLeverage int
}

func parseSpotMeta(payload any) (map[string]tokenInfo, []pairInfo, error) {
	meta, ok := toMap(payload)
	if !ok {
		// spotMetaAndAssetCtxs wraps the meta in a two-element array.
		if arr, ok := toSlice(payload); ok && len(arr) > 0 {
			meta, _ = toMap(arr[0])
		}
	}
	if meta == nil {
		return nil, nil, errors.New("spot meta payload is not an object")
	}
	rawTokens, _ := toSlice(meta["tokens"])
	rawUniverse, _ := toSlice(meta["universe"])
	if len(rawTokens) == 0 || len(rawUniverse) == 0 {
		return nil, nil, errors.New("spot meta missing tokens or universe")
	}
	tokens := make(map[string]tokenInfo, len(rawTokens))
	for i, item := range rawTokens {
		entry, ok := toMap(item)
		if !ok {
			continue
		}
		name := stringFromAny(entry["name"])
		if name == "" {
			continue
		}
		tokens[name] = tokenInfo{
			index:       intFromAny(entry["index"], i),
			szDecimals:  intFromAny(entry["szDecimals"], 0),
			weiDecimals: intFromAny(entry["weiDecimals"], 0),
		}
	}
	pairs := make([]pairInfo, 0, len(rawUniverse))
	for i, item := range rawUniverse {
		entry, ok := toMap(item)
		if !ok {
			continue
		}
		legs, ok := toSlice(entry["tokens"])
		if !ok || len(legs) < 2 {
			continue
		}
		pairs = append(pairs, pairInfo{
			index:      intFromAny(entry["index"], i),
			baseToken:  intFromAny(legs[0], -1),
			quoteToken: intFromAny(legs[1], -1),
		})
	}
	if len(tokens) == 0 || len(pairs) == 0 {
		return nil, nil, errors.New("no spot tokens or pairs parsed")
	}
	return tokens, pairs, nil
}

func parsePerpMeta(payload any) (map[string]perpInfo, error) {
	meta, ok := toMap(payload)
	if !ok {
		if arr, ok := toSlice(payload); ok && len(arr) > 0 {
			meta, _ = toMap(arr[0])
		}
	}
	if meta == nil {
		return nil, errors.New("perp meta payload is not an object")
	}
	universe, _ := toSlice(meta["universe"])
	if len(universe) == 0 {
		return nil, errors.New("perp meta missing universe")
	}
	perps := make(map[string]perpInfo, len(universe))
	for i, item := range universe {
		entry, ok := toMap(item)
		if !ok {
			continue
		}
		name := stringFromAny(entry["name"])
		if name == "" {
			continue
		}
		perps[name] = perpInfo{
			index:       i,
			szDecimals:  intFromAny(entry["szDecimals"], 0),
			maxLeverage: intFromAny(entry["maxLeverage"], 0),
		}
	}
	if len(perps) == 0 {
		return nil, errors.New("no perp universe entries parsed")
	}
	return perps, nil
}

// pairForToken finds the USDC-quoted pair for a base token. USDC is token 0
// on Hyperliquid spot.
func pairForToken(pairs []pairInfo, baseToken int) (pairInfo, bool) {
	for _, pair := range pairs {
		if pair.baseToken == baseToken && pair.quoteToken == 0 {
			return pair, true
		}
	}
	return pairInfo{}, false
}

func toMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func toSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func stringFromAny(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func intFromAny(v any, fallback int) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case int64:
		return int(val)
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
