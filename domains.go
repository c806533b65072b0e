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
import "io"

import . "github.com/pbenner/gonetics"

/* -------------------------------------------------------------------------- */

// Domain is a maximal run of foreground-labeled sites within one chain.
// Score is the sum of the posterior log-odds scores of its member
// sites.
type Domain struct {
  Seqname string
  From    int
  To      int
  Name    string
  Score   float64
}

/* -------------------------------------------------------------------------- */

// BuildDomains collapses the per-site label sequence into contiguous
// domains. Domains never span a chain boundary: a domain still open
// when a boundary is crossed is closed with the end coordinate of the
// last retained site before the boundary. A domain open at the final
// site is closed and emitted as well.
func BuildDomains(regions GRanges, postScores []float64, reset []int, classes []bool) []Domain {
  domains  := []Domain{}
  resetIdx := 1
  prevEnd  := 0
  inDomain := false
  score    := 0.0
  n        := 0

  closeDomain := func() {
    domains[len(domains)-1].To    = prevEnd
    domains[len(domains)-1].Score = score
    inDomain = false
    score    = 0.0
  }

  for i := 0; i < len(classes); i++ {
    if resetIdx < len(reset) && reset[resetIdx] == i {
      if inDomain {
        closeDomain()
      }
      resetIdx++
    }
    if classes[i] {
      if !inDomain {
        inDomain = true
        domains  = append(domains, Domain{
          regions.Seqnames[i],
          regions.Ranges[i].From,
          regions.Ranges[i].To,
          fmt.Sprintf("HYPO%d", n), 0.0 })
        n++
      }
      score += postScores[i]
    } else
    if inDomain {
      closeDomain()
    }
    prevEnd = regions.Ranges[i].To
  }
  if inDomain {
    closeDomain()
  }
  return domains
}

/* -------------------------------------------------------------------------- */

// DomainsToGRanges converts domains to a GRanges object with name and
// score metadata columns, suitable for BED6 export.
func DomainsToGRanges(domains []Domain) GRanges {
  seqnames := make([]string,  len(domains))
  from     := make([]int,     len(domains))
  to       := make([]int,     len(domains))
  names    := make([]string,  len(domains))
  scores   := make([]float64, len(domains))
  for i, d := range domains {
    seqnames[i] = d.Seqname
    from    [i] = d.From
    to      [i] = d.To
    names   [i] = d.Name
    scores  [i] = d.Score
  }
  g := NewGRanges(seqnames, from, to, nil)
  g.AddMeta("name",  names)
  g.AddMeta("score", scores)
  return g
}

// WriteDomains writes domains as BED6 records.
func WriteDomains(w io.Writer, domains []Domain) error {
  for _, d := range domains {
    if _, err := fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%f\t%s\n",
        d.Seqname, d.From, d.To, d.Name, d.Score, "+"); err != nil {
      return err
    }
  }
  return nil
}
