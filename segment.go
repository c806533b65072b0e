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

// FilterZeroCoverage removes all sites without any read coverage. Such
// sites carry no information for the emission model and must be dropped
// before desert segmentation, since gaps are measured between retained
// sites only.
func (m MethSites) FilterZeroCoverage() MethSites {
  idx  := []int{}
  meth := []CountPair{}
  for i := 0; i < m.Length(); i++ {
    if m.Meth[i].Total() > 0 {
      meth = append(meth, m.Meth[i])
    } else {
      idx = append(idx, i)
    }
  }
  return MethSites{m.Regions.Remove(idx), meth}
}

/* -------------------------------------------------------------------------- */

// ResetPoints segments the site table into independent chains. A chain
// boundary is placed before every site that lies on a different
// chromosome than its predecessor or whose start coordinate is more
// than desertSize bases away from the predecessor's start. The result
// is a strictly increasing list of chain start indices, beginning with
// 0 and terminated by the end-of-table sentinel, so that chain k covers
// the half-open index range [reset[k], reset[k+1]).
func (m MethSites) ResetPoints(desertSize int) []int {
  reset := []int{}
  for i := 0; i < m.Length(); i++ {
    if i == 0 ||
       m.Regions.Seqnames[i] != m.Regions.Seqnames[i-1] ||
       m.Regions.Ranges[i].From - m.Regions.Ranges[i-1].From > desertSize {
      reset = append(reset, i)
    }
  }
  reset = append(reset, m.Length())
  return reset
}
