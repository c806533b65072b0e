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

import . "github.com/pbenner/gonetics/lib/logarithmetic"
import   "github.com/pbenner/threadpool"

/* -------------------------------------------------------------------------- */

// state indices
const (
  sFg = 0 // foreground: hypomethylated
  sBg = 1 // background
)

// TransitionType selects which of the two state switches
// TransitionPosteriors evaluates.
type TransitionType int

const (
  FgToBg TransitionType = iota
  BgToFg
)

/* -------------------------------------------------------------------------- */

// Parameters of the two-state HMM: start distribution, row-stochastic
// transition matrix, end-transition correction applied at the last site
// of every chain, and the two beta-binomial emission laws.
type Parameters struct {
  StartTrans [2]float64
  Trans      [2][2]float64
  EndTrans   [2]float64
  FgEmission BetaBin
  BgEmission BetaBin
}

// DefaultParameters returns the canonical initialization: uniform start
// distribution, sticky transitions, a vanishing end correction, and
// emission shapes placed on either side of the mean coverage so that
// the foreground state starts out favoring low methylation levels.
func DefaultParameters(meanCoverage float64) Parameters {
  p := Parameters{}
  p.StartTrans = [2]float64{0.5, 0.5}
  p.Trans      = [2][2]float64{{0.75, 0.25}, {0.25, 0.75}}
  p.EndTrans   = [2]float64{1e-10, 1e-10}
  p.FgEmission = NewBetaBin(0.33*meanCoverage, 0.67*meanCoverage)
  p.BgEmission = NewBetaBin(0.67*meanCoverage, 0.33*meanCoverage)
  return p
}

/* -------------------------------------------------------------------------- */

// TwoStateHMM bundles the numerical safety constants and resource
// configuration of the inference engine. The engine itself is
// stateless; all per-call data lives on the stack of the caller.
type TwoStateHMM struct {
  MinProb       float64
  Tolerance     float64
  MaxIterations int
  Threads       int
  Verbose       bool
}

func NewTwoStateHMM() TwoStateHMM {
  return TwoStateHMM{1e-10, 1e-10, 10, 1, false}
}

/* -------------------------------------------------------------------------- */

// log-transformed transition parameters, floored at MinProb so that no
// log turns into -Inf from an exactly zero probability
type logTrans struct {
  sf, sb         float64
  ff, fb, ft     float64
  bf, bb, bt     float64
}

func (hmm TwoStateHMM) logTransitions(p Parameters) logTrans {
  f := func(x float64) float64 {
    return math.Log(math.Max(x, hmm.MinProb))
  }
  lp := logTrans{}
  lp.sf = f(p.StartTrans[sFg])
  lp.sb = f(p.StartTrans[sBg])
  lp.ff = f(p.Trans[sFg][sFg])
  lp.fb = f(p.Trans[sFg][sBg])
  lp.bf = f(p.Trans[sBg][sFg])
  lp.bb = f(p.Trans[sBg][sBg])
  lp.ft = f(p.EndTrans[sFg])
  lp.bt = f(p.EndTrans[sBg])
  return lp
}

/* forward-backward recursions
 * -------------------------------------------------------------------------- */

// forward fills f on the half-open chain [start, end) and returns the
// chain log-likelihood including the end-transition correction
func (hmm TwoStateHMM) forward(meth []CountPair, start, end int, lp logTrans, p Parameters, f [][2]float64) float64 {
  f[start][sFg] = p.FgEmission.LogDensity(meth[start]) + lp.sf
  f[start][sBg] = p.BgEmission.LogDensity(meth[start]) + lp.sb
  for i := start+1; i < end; i++ {
    k := i-1
    f[i][sFg] = p.FgEmission.LogDensity(meth[i]) + LogAdd(f[k][sFg] + lp.ff, f[k][sBg] + lp.bf)
    f[i][sBg] = p.BgEmission.LogDensity(meth[i]) + LogAdd(f[k][sFg] + lp.fb, f[k][sBg] + lp.bb)
  }
  return LogAdd(f[end-1][sFg] + lp.ft, f[end-1][sBg] + lp.bt)
}

func (hmm TwoStateHMM) backward(meth []CountPair, start, end int, lp logTrans, p Parameters, b [][2]float64) float64 {
  b[end-1][sFg] = lp.ft
  b[end-1][sBg] = lp.bt
  for k := end-1; k > start; k-- {
    i  := k-1
    fa := p.FgEmission.LogDensity(meth[k]) + b[k][sFg]
    ba := p.BgEmission.LogDensity(meth[k]) + b[k][sBg]
    b[i][sFg] = LogAdd(fa + lp.ff, ba + lp.fb)
    b[i][sBg] = LogAdd(fa + lp.bf, ba + lp.bb)
  }
  return LogAdd(b[start][sFg] + p.FgEmission.LogDensity(meth[start]) + lp.sf,
                b[start][sBg] + p.BgEmission.LogDensity(meth[start]) + lp.sb)
}

/* -------------------------------------------------------------------------- */

// forEachChain executes task once per chain. Chains are independent, so
// tasks run on a thread pool; every task owns its chain's index range
// exclusively and failures are collected deterministically in chain
// order.
func (hmm TwoStateHMM) forEachChain(reset []int, task func(chain, start, end int) error) error {
  threads := hmm.Threads
  if threads < 1 {
    threads = 1
  }
  pool := threadpool.New(threads, 100*threads)
  g    := pool.NewJobGroup()

  n    := len(reset)-1
  errs := make([]error, n)

  for k_ := 0; k_ < n; k_++ {
    // make a thread safe copy of k_
    k := k_
    pool.AddJob(g, func(pool threadpool.ThreadPool, erf func() error) error {
      errs[k] = task(k, reset[k], reset[k+1])
      return nil
    })
  }
  pool.Wait(g)

  for _, err := range errs {
    if err != nil {
      return err
    }
  }
  return nil
}

// forwardBackward runs both recursions over every chain and returns the
// full forward and backward tables together with the per-chain
// log-likelihoods. The forward and backward likelihood of a chain must
// agree and be finite; a relative discrepancy or a NaN signals a loss
// of numerical precision and is reported as such.
func (hmm TwoStateHMM) forwardBackward(meth []CountPair, reset []int, p Parameters) ([][2]float64, [][2]float64, []float64, error) {
  lp := hmm.logTransitions(p)
  f  := make([][2]float64, len(meth))
  b  := make([][2]float64, len(meth))
  ll := make([]float64, len(reset)-1)

  err := hmm.forEachChain(reset, func(chain, start, end int) error {
    scoreF := hmm.forward (meth, start, end, lp, p, f)
    scoreB := hmm.backward(meth, start, end, lp, p, b)
    // the comparison must not fail open on NaN
    if math.IsNaN(scoreF) || math.IsNaN(scoreB) ||
       math.Abs(scoreF-scoreB) > 1e-8*math.Max(math.Abs(scoreF), math.Abs(scoreB)) {
      return newErrorf(NumericalInstability,
        "forward and backward likelihoods diverged on chain %d (%e != %e)", chain, scoreF, scoreB)
    }
    ll[chain] = scoreF
    return nil
  })
  if err != nil {
    return nil, nil, nil, err
  }
  return f, b, ll, nil
}

/* decoding
 * -------------------------------------------------------------------------- */

// PosteriorDecoding labels every site foreground iff its marginal
// posterior foreground probability exceeds one half. The second return
// value holds these raw posterior probabilities.
func (hmm TwoStateHMM) PosteriorDecoding(meth []CountPair, reset []int, p Parameters) ([]bool, []float64, error) {
  f, b, _, err := hmm.forwardBackward(meth, reset, p)
  if err != nil {
    return nil, nil, err
  }
  classes := make([]bool,    len(meth))
  scores  := make([]float64, len(meth))
  for i := 0; i < len(meth); i++ {
    lf := f[i][sFg] + b[i][sFg]
    lb := f[i][sBg] + b[i][sBg]
    scores [i] = math.Exp(lf - LogAdd(lf, lb))
    classes[i] = lf > lb
  }
  return classes, scores, nil
}

// PosteriorScores returns the per-site log posterior odds of the
// foreground state. Positive values favor foreground; the quantity does
// not depend on which decoding mode was used and is the score that
// domains accumulate.
func (hmm TwoStateHMM) PosteriorScores(meth []CountPair, reset []int, p Parameters) ([]float64, error) {
  f, b, _, err := hmm.forwardBackward(meth, reset, p)
  if err != nil {
    return nil, err
  }
  scores := make([]float64, len(meth))
  for i := 0; i < len(meth); i++ {
    scores[i] = (f[i][sFg] + b[i][sFg]) - (f[i][sBg] + b[i][sBg])
  }
  return scores, nil
}

// TransitionPosteriors computes, for every adjacent site pair inside a
// chain, the posterior probability of the requested state switch. The
// value is stored at the second site of the pair; the first site of
// every chain carries a zero.
func (hmm TwoStateHMM) TransitionPosteriors(meth []CountPair, reset []int, p Parameters, t TransitionType) ([]float64, error) {
  f, b, ll, err := hmm.forwardBackward(meth, reset, p)
  if err != nil {
    return nil, err
  }
  a1, a2 := sFg, sBg
  if t == BgToFg {
    a1, a2 = sBg, sFg
  }
  lp     := hmm.logTransitions(p)
  trans  := [2][2]float64{{lp.ff, lp.fb}, {lp.bf, lp.bb}}
  scores := make([]float64, len(meth))

  err = hmm.forEachChain(reset, func(chain, start, end int) error {
    scores[start] = 0.0
    for i := start+1; i < end; i++ {
      k := i-1
      e := [2]float64{p.FgEmission.LogDensity(meth[i]), p.BgEmission.LogDensity(meth[i])}
      norm := math.Inf(-1)
      joint := [2][2]float64{}
      for j1 := 0; j1 < 2; j1++ {
        for j2 := 0; j2 < 2; j2++ {
          joint[j1][j2] = f[k][j1] + trans[j1][j2] + e[j2] + b[i][j2] - ll[chain]
          norm = LogAdd(norm, joint[j1][j2])
        }
      }
      scores[i] = math.Exp(joint[a1][a2] - norm)
    }
    return nil
  })
  if err != nil {
    return nil, err
  }
  return scores, nil
}

/* -------------------------------------------------------------------------- */

// ViterbiDecoding computes the maximum a posteriori state sequence of
// every chain by dynamic programming in log space. Ties between
// predecessor states are resolved in favor of staying on the currently
// dominant path, which makes the decoding deterministic.
func (hmm TwoStateHMM) ViterbiDecoding(meth []CountPair, reset []int, p Parameters) ([]bool, error) {
  lp      := hmm.logTransitions(p)
  classes := make([]bool, len(meth))

  err := hmm.forEachChain(reset, func(chain, start, end int) error {
    n     := end-start
    v     := make([][2]float64, n)
    trace := make([][2]int,     n)

    v[0][sFg] = p.FgEmission.LogDensity(meth[start]) + lp.sf
    v[0][sBg] = p.BgEmission.LogDensity(meth[start]) + lp.sb
    for i := 1; i < n; i++ {
      eFg := p.FgEmission.LogDensity(meth[start+i])
      eBg := p.BgEmission.LogDensity(meth[start+i])
      // foreground: prefer the foreground predecessor on ties
      if wf, wb := v[i-1][sFg] + lp.ff, v[i-1][sBg] + lp.bf; wf >= wb {
        v[i][sFg], trace[i][sFg] = eFg + wf, sFg
      } else {
        v[i][sFg], trace[i][sFg] = eFg + wb, sBg
      }
      // background: prefer the background predecessor on ties
      if wb, wf := v[i-1][sBg] + lp.bb, v[i-1][sFg] + lp.fb; wb >= wf {
        v[i][sBg], trace[i][sBg] = eBg + wb, sBg
      } else {
        v[i][sBg], trace[i][sBg] = eBg + wf, sFg
      }
    }
    state := sBg
    if v[n-1][sFg] + lp.ft >= v[n-1][sBg] + lp.bt {
      state = sFg
    }
    for i := n-1; i >= 0; i-- {
      classes[start+i] = state == sFg
      state = trace[i][state]
    }
    return nil
  })
  if err != nil {
    return nil, err
  }
  return classes, nil
}
