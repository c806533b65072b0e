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
import   "testing"

import . "github.com/pbenner/gonetics"

/* -------------------------------------------------------------------------- */

// two well separated methylation regimes on a single chromosome
func trainingData(n int, seed int64) ([]CountPair, []int) {
  rng  := rand.New(rand.NewSource(seed))
  meth := make([]CountPair, n)
  for i := 0; i < n; i++ {
    coverage := float64(10 + rng.Intn(20))
    r := 0.85
    if (i/25) % 2 == 0 {
      r = 0.15
    }
    m := math.Round(r*coverage + rng.NormFloat64())
    m  = math.Min(math.Max(m, 0), coverage)
    meth[i] = CountPair{m, coverage - m}
  }
  return meth, []int{0, n}
}

/* -------------------------------------------------------------------------- */

func TestBaumWelchRowStochastic(t *testing.T) {
  hmm         := NewTwoStateHMM()
  meth, reset := trainingData(200, 7)
  p           := DefaultParameters(20.0)

  if _, err := hmm.BaumWelchTraining(meth, reset, &p); err != nil {
    t.Fatal(err)
  }
  for j := 0; j < 2; j++ {
    sum := p.Trans[j][0] + p.Trans[j][1]
    if math.Abs(sum-1.0) > 1e-6 {
      t.Errorf("transition matrix row %d sums to %f", j, sum)
    }
    for l := 0; l < 2; l++ {
      if p.Trans[j][l] < 0.0 || p.Trans[j][l] > 1.0 {
        t.Errorf("transition probability out of range: %f", p.Trans[j][l])
      }
    }
  }
  if p.FgEmission.Alpha <= 0 || p.FgEmission.Beta <= 0 ||
     p.BgEmission.Alpha <= 0 || p.BgEmission.Beta <= 0 {
    t.Error("emission shape parameters must stay positive")
  }
}

func TestBaumWelchLikelihoodIncreases(t *testing.T) {
  meth, reset := trainingData(200, 7)

  prev := math.Inf(-1)
  for _, itr := range []int{1, 2, 4, 8} {
    hmm := NewTwoStateHMM()
    hmm.MaxIterations = itr

    p := DefaultParameters(20.0)
    result, err := hmm.BaumWelchTraining(meth, reset, &p)
    if err != nil {
      t.Fatal(err)
    }
    if result.LogLikelihood < prev-1e-6 {
      t.Errorf("log-likelihood decreased after %d iterations: %f < %f",
        itr, result.LogLikelihood, prev)
    }
    prev = result.LogLikelihood
  }
}

func TestBaumWelchStatus(t *testing.T) {
  meth, reset := trainingData(100, 3)

  // a single iteration can never satisfy the convergence criterion
  hmm := NewTwoStateHMM()
  hmm.MaxIterations = 1

  p := DefaultParameters(20.0)
  result, err := hmm.BaumWelchTraining(meth, reset, &p)
  if err != nil {
    t.Fatal(err)
  }
  if result.Status != TrainIterationCapReached || result.Iterations != 1 {
    t.Errorf("expected iteration cap, got %v after %d iterations", result.Status, result.Iterations)
  }
  // with a very permissive tolerance the second iteration converges
  hmm  = NewTwoStateHMM()
  hmm.MaxIterations = 10
  hmm.Tolerance     = 1.0

  p = DefaultParameters(20.0)
  result, err = hmm.BaumWelchTraining(meth, reset, &p)
  if err != nil {
    t.Fatal(err)
  }
  if result.Status != TrainConverged || result.Iterations != 2 {
    t.Errorf("expected convergence at iteration 2, got %v after %d iterations", result.Status, result.Iterations)
  }
}

/* -------------------------------------------------------------------------- */

// five sites with coverage 10, the first three almost fully methylated,
// the last two almost fully unmethylated; with the foreground emission
// initialized toward high methylation levels, decoding must yield a
// single domain over the first three sites
func TestEndToEndScenario(t *testing.T) {
  regions := NewGRanges(
    []string{"chr1", "chr1", "chr1", "chr1", "chr1"},
    []int{100, 200, 300, 400, 500},
    []int{102, 202, 302, 402, 502}, nil)
  meth  := []CountPair{{9, 1}, {8, 2}, {9, 1}, {1, 9}, {0, 10}}
  sites := MethSites{regions, meth}
  reset := sites.ResetPoints(2000)

  if len(reset) != 2 {
    t.Fatalf("expected a single chain, got reset points %v", reset)
  }
  p := DefaultParameters(10.0)
  // foreground favors high methylation levels in this scenario
  p.FgEmission = NewBetaBin(6.7, 3.3)
  p.BgEmission = NewBetaBin(3.3, 6.7)

  hmm := NewTwoStateHMM()
  if _, err := hmm.BaumWelchTraining(sites.Meth, reset, &p); err != nil {
    t.Fatal(err)
  }
  classes, _, err := hmm.PosteriorDecoding(sites.Meth, reset, p)
  if err != nil {
    t.Fatal(err)
  }
  expected := []bool{true, true, true, false, false}
  for i := 0; i < 5; i++ {
    if classes[i] != expected[i] {
      t.Fatalf("expected labels %v, got %v", expected, classes)
    }
  }
  scores, err := hmm.PosteriorScores(sites.Meth, reset, p)
  if err != nil {
    t.Fatal(err)
  }
  domains := BuildDomains(sites.Regions, scores, reset, classes)
  if len(domains) != 1 {
    t.Fatalf("expected 1 domain, got %d", len(domains))
  }
  if domains[0].From != 100 || domains[0].To != 302 {
    t.Errorf("wrong domain coordinates: %v", domains[0])
  }
  if domains[0].Score <= 0.0 {
    t.Errorf("expected a positive aggregate score, got %f", domains[0].Score)
  }
}
