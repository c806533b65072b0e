/* Copyright (C) 2020 Philipp Benner
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package methmr

/* -------------------------------------------------------------------------- */

import "math"
import "math/rand"
import "sort"

/* -------------------------------------------------------------------------- */

// ShuffleCounts permutes the count pairs within each chain, leaving the
// site coordinates untouched. This destroys the spatial correlation the
// HMM exploits while preserving every chain's count distribution, which
// is exactly the null the FDR cutoff is calibrated against. The
// generator is injected so that runs are reproducible.
func ShuffleCounts(rng *rand.Rand, meth []CountPair, reset []int) {
  for k := 0; k < len(reset)-1; k++ {
    chain := meth[reset[k]:reset[k+1]]
    rng.Shuffle(len(chain), func(i, j int) {
      chain[i], chain[j] = chain[j], chain[i]
    })
  }
}

/* -------------------------------------------------------------------------- */

// PosteriorCutoff derives the domain score threshold from the null
// domain scores at the target false discovery rate. An fdr of zero or
// less admits nothing, an fdr above one admits everything. Otherwise
// the score at the (1-fdr) quantile is chosen and then advanced to the
// next strictly greater score if one exists, which errs on the
// stringent side.
func PosteriorCutoff(domains []Domain, fdr float64) float64 {
  if fdr <= 0.0 {
    return math.MaxFloat64
  }
  if fdr > 1.0 {
    return -math.MaxFloat64
  }
  if len(domains) == 0 {
    return -math.MaxFloat64
  }
  scores := make([]float64, len(domains))
  for i := 0; i < len(domains); i++ {
    scores[i] = domains[i].Score
  }
  sort.Float64s(scores)

  index := int(float64(len(scores))*(1.0 - fdr))
  if index >= len(scores) {
    index = len(scores)-1
  }
  for i := index; i < len(scores); i++ {
    if scores[i] > scores[index] {
      index = i
      break
    }
  }
  return scores[index]
}

/* -------------------------------------------------------------------------- */

// FilterDomains retains all domains whose score reaches the cutoff.
func FilterDomains(domains []Domain, cutoff float64) []Domain {
  filtered := []Domain{}
  for _, d := range domains {
    if d.Score >= cutoff {
      filtered = append(filtered, d)
    }
  }
  return filtered
}
