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

import   "math"
import   "math/rand"
import   "sort"
import   "testing"

/* -------------------------------------------------------------------------- */

func nullDomains(scores ...float64) []Domain {
  domains := make([]Domain, len(scores))
  for i, s := range scores {
    domains[i] = Domain{"chr1", i*100, i*100+50, "HYPO0", s}
  }
  return domains
}

/* -------------------------------------------------------------------------- */

func TestPosteriorCutoffBoundaries(t *testing.T) {
  domains := nullDomains(1.0, 2.0, 3.0)

  if r := PosteriorCutoff(domains, 0.0); r != math.MaxFloat64 {
    t.Errorf("fdr = 0 must admit nothing, got cutoff %e", r)
  }
  if r := PosteriorCutoff(domains, -0.3); r != math.MaxFloat64 {
    t.Errorf("negative fdr must admit nothing, got cutoff %e", r)
  }
  if r := PosteriorCutoff(domains, 1.5); r != -math.MaxFloat64 {
    t.Errorf("fdr > 1 must admit everything, got cutoff %e", r)
  }
  if r := PosteriorCutoff([]Domain{}, 0.05); r != -math.MaxFloat64 {
    t.Errorf("empty null set must admit everything, got cutoff %e", r)
  }
}

func TestPosteriorCutoffConservative(t *testing.T) {
  // the cutoff steps over ties to the next strictly greater score
  domains := nullDomains(1.0, 1.0, 1.0, 1.0, 2.0)

  if r := PosteriorCutoff(domains, 0.5); r != 2.0 {
    t.Errorf("expected cutoff 2.0, got %f", r)
  }
  // without a strictly greater score the quantile value itself is used
  domains = nullDomains(1.0, 1.0, 1.0, 1.0)
  if r := PosteriorCutoff(domains, 0.5); r != 1.0 {
    t.Errorf("expected cutoff 1.0, got %f", r)
  }
}

func TestPosteriorCutoffMonotone(t *testing.T) {
  rng     := rand.New(rand.NewSource(13))
  scores  := make([]float64, 200)
  for i := 0; i < len(scores); i++ {
    scores[i] = rng.NormFloat64()*5.0
  }
  domains := nullDomains(scores...)

  fdrs := []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 0.9, 1.0}
  prev := math.MaxFloat64
  for _, fdr := range fdrs {
    r := PosteriorCutoff(domains, fdr)
    if r > prev {
      t.Errorf("cutoff not monotone: fdr %g gives %f, stricter fdr gave %f", fdr, r, prev)
    }
    prev = r
  }
}

/* -------------------------------------------------------------------------- */

func TestShuffleCounts(t *testing.T) {
  meth := []CountPair{
    {1, 0}, {2, 0}, {3, 0}, {4, 0},
    {101, 0}, {102, 0}, {103, 0}}
  reset := []int{0, 4, 7}

  shuffled := make([]CountPair, len(meth))
  copy(shuffled, meth)
  ShuffleCounts(rand.New(rand.NewSource(42)), shuffled, reset)

  // counts must not cross the chain boundary and every chain keeps its
  // multiset of values
  for k := 0; k < len(reset)-1; k++ {
    a := []float64{}
    b := []float64{}
    for i := reset[k]; i < reset[k+1]; i++ {
      a = append(a, meth[i].Meth)
      b = append(b, shuffled[i].Meth)
    }
    sort.Float64s(a)
    sort.Float64s(b)
    for i := 0; i < len(a); i++ {
      if a[i] != b[i] {
        t.Fatal("shuffling mixed counts across chains")
      }
    }
  }
  // the same seed must reproduce the same permutation
  again := make([]CountPair, len(meth))
  copy(again, meth)
  ShuffleCounts(rand.New(rand.NewSource(42)), again, reset)

  for i := 0; i < len(meth); i++ {
    if again[i] != shuffled[i] {
      t.Fatal("shuffling is not reproducible for a fixed seed")
    }
  }
}
