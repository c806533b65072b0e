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

import "fmt"
import "math"
import "os"

import . "github.com/pbenner/gonetics/lib/logarithmetic"

/* -------------------------------------------------------------------------- */

type TrainStatus int

const (
  TrainConverged TrainStatus = iota
  TrainIterationCapReached
)

func (status TrainStatus) String() string {
  switch status {
  case TrainConverged:
    return "converged"
  case TrainIterationCapReached:
    return "iteration cap reached"
  }
  return "unknown"
}

// TrainResult reports how Baum-Welch training ended, rather than
// leaving the caller to guess from the iteration count.
type TrainResult struct {
  Status        TrainStatus
  LogLikelihood float64
  Iterations    int
}

/* -------------------------------------------------------------------------- */

// chainStats holds the expected sufficient statistics of a single
// chain in log space. Each chain produces its own immutable value;
// combining them is a separate, deterministic reduction, which keeps
// the E-step free of shared mutable state.
type chainStats struct {
  ff, fb float64
  bf, bb float64
  logLik float64
}

func newChainStats() chainStats {
  inf := math.Inf(-1)
  return chainStats{inf, inf, inf, inf, 0.0}
}

func (s chainStats) add(t chainStats) chainStats {
  return chainStats{
    LogAdd(s.ff, t.ff), LogAdd(s.fb, t.fb),
    LogAdd(s.bf, t.bf), LogAdd(s.bb, t.bb),
    s.logLik + t.logLik }
}

/* -------------------------------------------------------------------------- */

// singleIteration performs one EM step: the E-step collects expected
// transition counts and posterior state weights chain by chain, the
// M-step renormalizes the transition matrix and refits both emission
// laws. It returns the total log-likelihood under the parameters the
// iteration started with.
func (hmm TwoStateHMM) singleIteration(meth []CountPair, reset []int, valsA, valsB []float64, p *Parameters, f, b [][2]float64, fgProbs, bgProbs []float64) (float64, error) {
  lp    := hmm.logTransitions(*p)
  stats := make([]chainStats, len(reset)-1)

  err := hmm.forEachChain(reset, func(chain, start, end int) error {
    scoreF := hmm.forward (meth, start, end, lp, *p, f)
    scoreB := hmm.backward(meth, start, end, lp, *p, b)
    // the comparison must not fail open on NaN
    if math.IsNaN(scoreF) || math.IsNaN(scoreB) ||
       math.Abs(scoreF-scoreB) > 1e-8*math.Max(math.Abs(scoreF), math.Abs(scoreB)) {
      return newErrorf(NumericalInstability,
        "forward and backward likelihoods diverged on chain %d (%e != %e)", chain, scoreF, scoreB)
    }
    s := newChainStats()
    s.logLik = scoreF
    // expected transition counts; the final site of the chain has no
    // outgoing transition
    for i := start; i < end-1; i++ {
      k  := i+1
      eF := p.FgEmission.LogDensity(meth[k])
      eB := p.BgEmission.LogDensity(meth[k])
      s.ff = LogAdd(s.ff, f[i][sFg] + lp.ff + eF + b[k][sFg] - scoreF)
      s.fb = LogAdd(s.fb, f[i][sFg] + lp.fb + eB + b[k][sBg] - scoreF)
      s.bf = LogAdd(s.bf, f[i][sBg] + lp.bf + eF + b[k][sFg] - scoreF)
      s.bb = LogAdd(s.bb, f[i][sBg] + lp.bb + eB + b[k][sBg] - scoreF)
    }
    // posterior state weights for the emission M-step
    for i := start; i < end; i++ {
      norm := LogAdd(f[i][sFg] + b[i][sFg], f[i][sBg] + b[i][sBg])
      fgProbs[i] = math.Exp(f[i][sFg] + b[i][sFg] - norm)
      bgProbs[i] = math.Exp(f[i][sBg] + b[i][sBg] - norm)
    }
    stats[chain] = s
    return nil
  })
  if err != nil {
    return 0.0, err
  }
  // reduce sufficient statistics in chain order
  total := newChainStats()
  for _, s := range stats {
    total = total.add(s)
  }
  // M-step: transition matrix; half the end-transition mass is taken
  // from each row entry so that rows remain normalized together with
  // the end correction
  ff := math.Exp(total.ff)
  fb := math.Exp(total.fb)
  bf := math.Exp(total.bf)
  bb := math.Exp(total.bb)
  p.Trans[sFg][sFg] = ff/(ff+fb) - p.EndTrans[sFg]/2.0
  p.Trans[sFg][sBg] = fb/(ff+fb) - p.EndTrans[sFg]/2.0
  p.Trans[sBg][sFg] = bf/(bf+bb) - p.EndTrans[sBg]/2.0
  p.Trans[sBg][sBg] = bb/(bf+bb) - p.EndTrans[sBg]/2.0

  // M-step: emission shapes
  p.FgEmission.Fit(valsA, valsB, fgProbs)
  p.BgEmission.Fit(valsA, valsB, bgProbs)

  return total.logLik, nil
}

/* -------------------------------------------------------------------------- */

// BaumWelchTraining fits the transition matrix and both emission laws
// by expectation maximization. Training stops once the relative
// improvement of the total log-likelihood drops below Tolerance, in
// which case the parameters that produced the last accepted likelihood
// are kept, or after MaxIterations EM steps. When the iteration cap is
// reached, the reported log-likelihood was evaluated under the
// parameters before the final M-step and therefore lags the returned
// parameters by one update.
func (hmm TwoStateHMM) BaumWelchTraining(meth []CountPair, reset []int, p *Parameters) (TrainResult, error) {
  n := len(meth)

  // clamped per-site log methylation levels for the emission M-step
  valsA := make([]float64, n)
  valsB := make([]float64, n)
  for i := 0; i < n; i++ {
    r := meth[i].Meth/meth[i].Total()
    r  = math.Min(math.Max(r, 1e-2), 1.0-1e-2)
    valsA[i] = math.Log(r)
    valsB[i] = math.Log(1.0 - r)
  }
  f       := make([][2]float64, n)
  b       := make([][2]float64, n)
  fgProbs := make([]float64,    n)
  bgProbs := make([]float64,    n)

  result    := TrainResult{TrainIterationCapReached, math.Inf(-1), 0}
  prevTotal := math.Inf(-1)

  for itr := 0; itr < hmm.MaxIterations; itr++ {
    trial := *p
    total, err := hmm.singleIteration(meth, reset, valsA, valsB, &trial, f, b, fgProbs, bgProbs)
    if err != nil {
      return result, err
    }
    if math.IsNaN(total) {
      return result, newErrorf(NumericalInstability, "log-likelihood is NaN at iteration %d", itr+1)
    }
    if hmm.Verbose {
      fmt.Fprintf(os.Stderr, "[baum-welch] iteration %2d: log-likelihood %.6f (delta %.6e)\n",
        itr+1, total, total-prevTotal)
    }
    result.Iterations    = itr+1
    result.LogLikelihood = total
    if total-prevTotal < hmm.Tolerance*math.Abs(total) {
      // the step did not improve the likelihood enough; keep the
      // parameters the likelihood was computed under
      result.Status = TrainConverged
      break
    }
    *p = trial
    prevTotal = total
  }
  return result, nil
}
