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
import "bytes"
import "fmt"
import "io/ioutil"

import . "github.com/pbenner/gonetics"

/* -------------------------------------------------------------------------- */

// WriteScoreTrack exports one value per site in bedGraph format. If
// trackName is non-empty a browser track line is written first, so that
// the file can be loaded into a genome browser directly.
func WriteScoreTrack(filename string, regions GRanges, values []float64, trackName string) error {
  if regions.Length() != len(values) {
    return fmt.Errorf("WriteScoreTrack(): regions and values differ in length")
  }
  var buffer bytes.Buffer

  w := bufio.NewWriter(&buffer)

  if trackName != "" {
    fmt.Fprintf(w, "track type=bedGraph name=\"%s\"\n", trackName)
  }
  for i := 0; i < regions.Length(); i++ {
    fmt.Fprintf(w,   "%s", regions.Seqnames[i])
    fmt.Fprintf(w, "\t%d", regions.Ranges[i].From)
    fmt.Fprintf(w, "\t%d", regions.Ranges[i].To)
    fmt.Fprintf(w, "\t%f", values[i])
    fmt.Fprintf(w, "\n")
  }
  w.Flush()

  return ioutil.WriteFile(filename, buffer.Bytes(), 0666)
}
