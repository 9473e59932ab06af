// Package identity resolves token symbols to display icon ids.
package identity

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"poolDesk/internal/metrics"
	"poolDesk/internal/model"
	"poolDesk/internal/upstream"
)

// NoIcon is the icon id of an unresolved token.
const NoIcon = 0

// Outcome records which rule produced a resolution.
type Outcome string

const (
	ByName     Outcome = "by_name"
	BySymbol   Outcome = "by_symbol"
	Ambiguous  Outcome = "ambiguous"
	Unresolved Outcome = "unresolved"
)

// Resolution is the result of resolving one token.
type Resolution struct {
	IconID  int
	Outcome Outcome
}

// Index is an immutable snapshot of the reference token index.
type Index struct {
	symbols map[string][]int
	names   map[string]int
}

// BuildIndex builds an Index from reference triples. Symbol candidates keep first-seen
// order without repeats; the first entry for a name wins. Entries without an icon are ignored.
func BuildIndex(entries []model.TokenIconEntry) *Index {
	ix := &Index{
		symbols: make(map[string][]int),
		names:   make(map[string]int),
	}
	for _, e := range entries {
		if e.IconID == NoIcon {
			continue
		}
		if sym := symbolKey(e.Symbol); sym != "" && !contains(ix.symbols[sym], e.IconID) {
			ix.symbols[sym] = append(ix.symbols[sym], e.IconID)
		}
		if name := nameKey(e.Name); name != "" {
			if _, ok := ix.names[name]; !ok {
				ix.names[name] = e.IconID
			}
		}
	}
	return ix
}

// Len returns the number of distinct symbols.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.symbols)
}

// Resolve picks an icon id for symbol. A known name wins, then a unique symbol candidate,
// then the first of several candidates. Otherwise the token has no icon.
func (ix *Index) Resolve(symbol, name string) Resolution {
	if ix == nil {
		return Resolution{IconID: NoIcon, Outcome: Unresolved}
	}
	if key := nameKey(name); key != "" {
		if id, ok := ix.names[key]; ok {
			return Resolution{IconID: id, Outcome: ByName}
		}
	}
	candidates := ix.symbols[symbolKey(symbol)]
	switch len(candidates) {
	case 0:
		return Resolution{IconID: NoIcon, Outcome: Unresolved}
	case 1:
		return Resolution{IconID: candidates[0], Outcome: BySymbol}
	default:
		return Resolution{IconID: candidates[0], Outcome: Ambiguous}
	}
}

// Resolver resolves tokens against an Index and records fallbacks.
type Resolver struct {
	index   *Index
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewResolver(index *Index, logger *zap.Logger, m *metrics.Metrics) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{index: index, logger: logger, metrics: m}
}

// Token resolves one upstream token into snapshot details.
func (r *Resolver) Token(token model.TokenWire) (model.TokenDetails, Outcome) {
	res := r.index.Resolve(token.Symbol, token.Name)
	r.metrics.IdentityResolved(string(res.Outcome))
	if res.Outcome == Ambiguous || res.Outcome == Unresolved {
		r.logger.Debug("identity fallback",
			zap.String("symbol", token.Symbol),
			zap.String("name", token.Name),
			zap.String("outcome", string(res.Outcome)),
			zap.Int("icon_id", res.IconID),
		)
	}

	address := strings.ToLower(strings.TrimSpace(token.ID))
	if addr, err := upstream.NormalizeAddress(token.ID); err == nil {
		address = addr
	}
	decimals, _ := upstream.ParseInt(token.Decimals)

	return model.TokenDetails{
		Address:  address,
		Symbol:   token.Symbol,
		Name:     token.Name,
		Decimals: int(decimals),
		IconID:   res.IconID,
	}, res.Outcome
}

// Source loads reference index triples.
type Source interface {
	LoadTokenIndex(ctx context.Context) ([]model.TokenIconEntry, error)
}

// Load builds an Index from src.
func Load(ctx context.Context, src Source) (*Index, error) {
	entries, err := src.LoadTokenIndex(ctx)
	if err != nil {
		return nil, err
	}
	return BuildIndex(entries), nil
}

// FileSource reads the index from a JSONL file of {symbol, name, iconId} lines.
type FileSource struct {
	Path string
}

func (s FileSource) LoadTokenIndex(ctx context.Context) ([]model.TokenIconEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return upstream.ReadJSONL[model.TokenIconEntry](s.Path)
}

// StaticSource serves a fixed list of triples.
type StaticSource []model.TokenIconEntry

func (s StaticSource) LoadTokenIndex(context.Context) ([]model.TokenIconEntry, error) {
	return s, nil
}

func symbolKey(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
