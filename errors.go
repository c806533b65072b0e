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

import "errors"
import "fmt"

/* -------------------------------------------------------------------------- */

// ErrorKind partitions all failures of this package into a closed set of
// conditions, so that callers can distinguish bad input from fatal
// resource or numerical problems.
type ErrorKind int

const (
  InputFormatError     ErrorKind = iota // malformed or unsorted input records
  ResourceExhausted                     // input exceeds what can be buffered
  NumericalInstability                  // inference produced inconsistent or non-finite values
)

func (kind ErrorKind) String() string {
  switch kind {
  case InputFormatError:
    return "input format error"
  case ResourceExhausted:
    return "resource exhausted"
  case NumericalInstability:
    return "numerical instability"
  }
  return "unknown error"
}

/* -------------------------------------------------------------------------- */

type Error struct {
  Kind ErrorKind
  Msg  string
}

func newErrorf(kind ErrorKind, format string, args ...interface{}) *Error {
  return &Error{kind, fmt.Sprintf(format, args...)}
}

func (err *Error) Error() string {
  return fmt.Sprintf("%v: %s", err.Kind, err.Msg)
}

// IsKind reports whether err or any error it wraps is an Error of the
// given kind.
func IsKind(err error, kind ErrorKind) bool {
  e := &Error{}
  if errors.As(err, &e) {
    return e.Kind == kind
  }
  return false
}
