package results

import (
	"sort"

	"github.com/talgya/spatial-dilemma/internal/model"
)

// Ensemble groups results by parameter point and returns the mean Fc and
// the sample variance (n-1 denominator, 0 for a single episode), ordered
// Dr first then Dg.
func Ensemble(rows []model.EpisodeResult) []model.EnsemblePoint {
	groups := make(map[model.Params][]float64)
	for _, r := range rows {
		p := r.Params()
		groups[p] = append(groups[p], r.Fc)
	}

	out := make([]model.EnsemblePoint, 0, len(groups))
	for p, fcs := range groups {
		mean := 0.0
		for _, fc := range fcs {
			mean += fc
		}
		mean /= float64(len(fcs))

		variance := 0.0
		if len(fcs) > 1 {
			for _, fc := range fcs {
				d := fc - mean
				variance += d * d
			}
			variance /= float64(len(fcs) - 1)
		}

		out = append(out, model.EnsemblePoint{
			Dg:       p.Dg,
			Dr:       p.Dr,
			Episodes: len(fcs),
			Mean:     mean,
			Variance: variance,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Dr != out[j].Dr {
			return out[i].Dr < out[j].Dr
		}
		return out[i].Dg < out[j].Dg
	})
	return out
}

// LoadEnsemble reads phase_diagram0..episodes-1 from dir and aggregates
// them.
func LoadEnsemble(dir string, episodes int) ([]model.EnsemblePoint, error) {
	var rows []model.EpisodeResult
	for ep := 0; ep < episodes; ep++ {
		batch, err := ReadPhaseDiagram(dir, ep)
		if err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
	}
	return Ensemble(rows), nil
}
