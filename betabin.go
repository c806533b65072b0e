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

import "gonum.org/v1/gonum/mathext"

/* -------------------------------------------------------------------------- */

const fitTolerance = 1e-10

/* -------------------------------------------------------------------------- */

// BetaBin is a beta-binomial emission law with shape parameters
// Alpha, Beta > 0. The log of the beta function is cached since it is
// evaluated once per site and per forward/backward sweep.
type BetaBin struct {
  Alpha  float64
  Beta   float64
  lnBeta float64
}

func NewBetaBin(alpha, beta float64) BetaBin {
  return BetaBin{alpha, beta, mathext.Lbeta(alpha, beta)}
}

// LogDensity evaluates the log-probability of observing x.Meth
// methylated reads out of x.Total() under the beta-binomial law. All
// terms are computed through log-gamma, which keeps the result accurate
// for coverage values from 1 up to several thousand reads.
func (dist BetaBin) LogDensity(x CountPair) float64 {
  m := x.Meth
  n := x.Meth + x.Unmeth
  return logChoose(n, m) + mathext.Lbeta(m+dist.Alpha, n-m+dist.Beta) - dist.lnBeta
}

func logChoose(n, k float64) float64 {
  g1, _ := math.Lgamma(n + 1.0)
  g2, _ := math.Lgamma(k + 1.0)
  g3, _ := math.Lgamma(n - k + 1.0)
  return g1 - g2 - g3
}

/* maximum likelihood estimation
 * -------------------------------------------------------------------------- */

// invPsi inverts the digamma function by bisecting around exp(x), which
// is already close to the solution for the arguments arising here.
func invPsi(tolerance, x float64) float64 {
  l := 1.0
  y := math.Exp(x)
  for l > tolerance {
    if x - mathext.Digamma(y) >= 0 {
      y += l
    } else {
      y -= l
    }
    if y < tolerance {
      y = tolerance
    }
    l /= 2.0
  }
  return y
}

func movement(curr, prev float64) float64 {
  return math.Abs(curr-prev)/math.Max(math.Abs(curr), math.Abs(prev))
}

// Fit re-estimates the shape parameters by maximizing the expected
// log-likelihood under the posterior weights p, where valsA and valsB
// hold the clamped log methylation and log non-methylation levels of
// every site. The stationarity conditions of the beta-binomial
// likelihood are solved by a fixed-point iteration on the inverse
// digamma function.
func (dist *BetaBin) Fit(valsA, valsB, p []float64) {
  pTotal   := 0.0
  alphaRhs := 0.0
  betaRhs  := 0.0
  for i := 0; i < len(p); i++ {
    pTotal   += p[i]
    alphaRhs += valsA[i]*p[i]
    betaRhs  += valsB[i]*p[i]
  }
  alphaRhs /= pTotal
  betaRhs  /= pTotal

  alpha     := 0.01
  beta      := 0.01
  prevAlpha := 0.0
  prevBeta  := 0.0
  for movement(alpha, prevAlpha) > fitTolerance ||
      movement(beta , prevBeta ) > fitTolerance {
    prevAlpha = alpha
    prevBeta  = beta
    alpha = invPsi(fitTolerance, mathext.Digamma(prevAlpha+prevBeta) + alphaRhs)
    beta  = invPsi(fitTolerance, mathext.Digamma(prevAlpha+prevBeta) + betaRhs)
  }
  *dist = NewBetaBin(alpha, beta)
}
