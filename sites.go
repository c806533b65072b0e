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

import "bufio"
import "compress/gzip"
import "math"
import "os"
import "strconv"
import "strings"

import . "github.com/pbenner/gonetics"

/* -------------------------------------------------------------------------- */

// CountPair holds the number of methylated and unmethylated reads
// observed at a single CpG site.
type CountPair struct {
  Meth   float64
  Unmeth float64
}

func (p CountPair) Total() float64 {
  return p.Meth + p.Unmeth
}

/* -------------------------------------------------------------------------- */

// MethSites is the site table: one genomic range per assayed CpG site
// together with its methylation count pair. Regions and Meth are kept
// parallel at all times.
type MethSites struct {
  Regions GRanges
  Meth    []CountPair
}

func (m MethSites) Length() int {
  return len(m.Meth)
}

func (m MethSites) MeanCoverage() float64 {
  if len(m.Meth) == 0 {
    return 0.0
  }
  sum := 0.0
  for i := 0; i < len(m.Meth); i++ {
    sum += m.Meth[i].Total()
  }
  return sum/float64(len(m.Meth))
}

func (m MethSites) Clone() MethSites {
  meth := make([]CountPair, len(m.Meth))
  copy(meth, m.Meth)
  return MethSites{m.Regions.Clone(), meth}
}

/* -------------------------------------------------------------------------- */

// ImportMethCounts reads a methylation count file. Each record has the
// columns chromosome, start, end, name, and score, where the name field
// carries the total read coverage as a suffix after a colon (e.g.
// `CpG:22') and the score field gives the fraction of methylated reads.
// Records must be coordinate sorted within each chromosome; otherwise an
// InputFormatError is returned before any downstream computation sees
// the data.
func ImportMethCounts(filename string) (MethSites, error) {
  m := MethSites{}

  var scanner *bufio.Scanner
  f, err := os.Open(filename)
  if err != nil {
    return m, err
  }
  defer f.Close()
  // check if file is gzipped
  if isGzip(filename) {
    g, err := gzip.NewReader(f)
    if err != nil {
      return m, err
    }
    defer g.Close()
    scanner = bufio.NewScanner(g)
  } else {
    scanner = bufio.NewScanner(f)
  }

  seqnames := []string{}
  from     := []int{}
  to       := []int{}
  meth     := []CountPair{}

  for scanner.Scan() {
    fields := strings.Fields(scanner.Text())
    if len(fields) == 0 {
      continue
    }
    if len(fields) < 5 {
      return m, newErrorf(InputFormatError, "file `%s': record has fewer than five columns", filename)
    }
    t1, err := strconv.ParseInt(fields[1], 10, 64); if err != nil {
      return m, newErrorf(InputFormatError, "file `%s': invalid start coordinate `%s'", filename, fields[1])
    }
    t2, err := strconv.ParseInt(fields[2], 10, 64); if err != nil {
      return m, newErrorf(InputFormatError, "file `%s': invalid end coordinate `%s'", filename, fields[2])
    }
    fraction, err := strconv.ParseFloat(fields[4], 64); if err != nil {
      return m, newErrorf(InputFormatError, "file `%s': invalid methylation level `%s'", filename, fields[4])
    }
    k := strings.LastIndex(fields[3], ":")
    if k == -1 || k == len(fields[3])-1 {
      return m, newErrorf(InputFormatError, "file `%s': name field `%s' does not encode a read coverage", filename, fields[3])
    }
    coverage, err := strconv.ParseInt(fields[3][k+1:], 10, 64); if err != nil || coverage < 0 {
      return m, newErrorf(InputFormatError, "file `%s': name field `%s' does not encode a read coverage", filename, fields[3])
    }
    if n := len(seqnames); n > 0 && seqnames[n-1] == fields[0] && from[n-1] >= int(t1) {
      return m, newErrorf(InputFormatError, "file `%s': records not sorted at %s:%d", filename, fields[0], t1)
    }
    methylated := math.Round(fraction*float64(coverage))

    seqnames = append(seqnames, fields[0])
    from     = append(from,     int(t1))
    to       = append(to,       int(t2))
    meth     = append(meth,     CountPair{methylated, float64(coverage) - methylated})
  }
  if err := scanner.Err(); err != nil {
    if err == bufio.ErrTooLong {
      return m, newErrorf(ResourceExhausted, "file `%s': record exceeds scanner buffer", filename)
    }
    return m, err
  }
  m.Regions = NewGRanges(seqnames, from, to, nil)
  m.Meth    = meth

  return m, nil
}

/* -------------------------------------------------------------------------- */

func isGzip(filename string) bool {

  f, err := os.Open(filename)
  if err != nil {
    return false
  }
  defer f.Close()

  b := make([]byte, 2)
  n, err := f.Read(b)
  if err != nil {
    return false
  }

  if n == 2 && b[0] == 31 && b[1] == 139 {
    return true
  }
  return false
}
