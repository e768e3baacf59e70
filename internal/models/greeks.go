package models

// OptionGreeks is one option model computation for a contract. Values the
// server left unset decode as the session's configured sentinel.
type OptionGreeks struct {
	ImpliedVol float64 `json:"implied_vol"`
	Delta      float64 `json:"delta"`
	OptPrice   float64 `json:"opt_price"`
	PvDividend float64 `json:"pv_dividend"`
	Gamma      float64 `json:"gamma"`
	Vega       float64 `json:"vega"`
	Theta      float64 `json:"theta"`
	UndPrice   float64 `json:"und_price"`
}

// Add returns the elementwise sum, for combining greeks of multi-leg
// structures without re-querying.
func (g OptionGreeks) Add(o OptionGreeks) OptionGreeks {
	return OptionGreeks{
		ImpliedVol: g.ImpliedVol + o.ImpliedVol,
		Delta:      g.Delta + o.Delta,
		OptPrice:   g.OptPrice + o.OptPrice,
		PvDividend: g.PvDividend + o.PvDividend,
		Gamma:      g.Gamma + o.Gamma,
		Vega:       g.Vega + o.Vega,
		Theta:      g.Theta + o.Theta,
		UndPrice:   g.UndPrice + o.UndPrice,
	}
}

// Sub returns the elementwise difference.
func (g OptionGreeks) Sub(o OptionGreeks) OptionGreeks {
	return g.Add(o.Scale(-1))
}

// Scale multiplies every element by k, e.g. a leg ratio.
func (g OptionGreeks) Scale(k float64) OptionGreeks {
	return OptionGreeks{
		ImpliedVol: g.ImpliedVol * k,
		Delta:      g.Delta * k,
		OptPrice:   g.OptPrice * k,
		PvDividend: g.PvDividend * k,
		Gamma:      g.Gamma * k,
		Vega:       g.Vega * k,
		Theta:      g.Theta * k,
		UndPrice:   g.UndPrice * k,
	}
}
