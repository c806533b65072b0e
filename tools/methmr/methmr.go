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

package main

/* -------------------------------------------------------------------------- */

import   "fmt"
import   "log"
import   "math"
import   "math/rand"
import   "os"
import   "strconv"

import   "github.com/pborman/getopt"

import . "github.com/pbenner/methmr"

/* -------------------------------------------------------------------------- */

type Config struct {
  Output        string
  ScoresFile    string
  TransFile     string
  Name          string
  DesertSize    int
  MaxIterations int
  Fdr           float64
  Seed          int64
  Threads       int
  Viterbi       bool
  Browser       bool
  Verbose       int
}

/* i/o
 * -------------------------------------------------------------------------- */

func printStderr(config Config, level int, format string, args ...interface{}) {
  if config.Verbose >= level {
    fmt.Fprintf(os.Stderr, format, args...)
  }
}

/* -------------------------------------------------------------------------- */

func importSites(config Config, filename string) MethSites {
  printStderr(config, 1, "Reading methylation counts from `%s'... ", filename)
  sites, err := ImportMethCounts(filename)
  if err != nil {
    printStderr(config, 1, "failed\n")
    log.Fatal(err)
  }
  printStderr(config, 1, "done\n")
  printStderr(config, 1, "Total sites: %d, mean coverage: %.2f\n",
    sites.Length(), sites.MeanCoverage())
  return sites
}

func trackName(config Config, fallback string) string {
  if !config.Browser {
    return ""
  }
  if config.Name != "" {
    return config.Name
  }
  return fallback
}

/* -------------------------------------------------------------------------- */

func decode(config Config, hmm TwoStateHMM, meth []CountPair, reset []int, p Parameters) []bool {
  if config.Viterbi {
    classes, err := hmm.ViterbiDecoding(meth, reset, p)
    if err != nil {
      log.Fatal(err)
    }
    return classes
  }
  classes, _, err := hmm.PosteriorDecoding(meth, reset, p)
  if err != nil {
    log.Fatal(err)
  }
  return classes
}

func posteriorScores(hmm TwoStateHMM, meth []CountPair, reset []int, p Parameters) []float64 {
  scores, err := hmm.PosteriorScores(meth, reset, p)
  if err != nil {
    log.Fatal(err)
  }
  return scores
}

/* -------------------------------------------------------------------------- */

func findHypomethylatedRegions(config Config, filenameIn string) {
  sites := importSites(config, filenameIn)
  sites  = sites.FilterZeroCoverage()
  if sites.Length() == 0 {
    log.Fatalf("file `%s' contains no sites with read coverage", filenameIn)
  }
  reset := sites.ResetPoints(config.DesertSize)
  printStderr(config, 1, "Sites retained: %d, chains: %d\n", sites.Length(), len(reset)-1)

  hmm := NewTwoStateHMM()
  hmm.MaxIterations = config.MaxIterations
  hmm.Threads       = config.Threads
  hmm.Verbose       = config.Verbose >= 2

  parameters := DefaultParameters(sites.MeanCoverage())

  printStderr(config, 1, "Training HMM parameters... ")
  result, err := hmm.BaumWelchTraining(sites.Meth, reset, &parameters)
  if err != nil {
    printStderr(config, 1, "failed\n")
    log.Fatal(err)
  }
  printStderr(config, 1, "done\n")
  printStderr(config, 1, "Training %v after %d iterations (log-likelihood %.4f)\n",
    result.Status, result.Iterations, result.LogLikelihood)

  classes    := decode(config, hmm, sites.Meth, reset, parameters)
  postScores := posteriorScores(hmm, sites.Meth, reset, parameters)

  if config.ScoresFile != "" {
    printStderr(config, 1, "Writing posterior score track to `%s'... ", config.ScoresFile)
    if err := WriteScoreTrack(config.ScoresFile, sites.Regions, postScores, trackName(config, "posterior-scores")); err != nil {
      printStderr(config, 1, "failed\n")
      log.Fatal(err)
    }
    printStderr(config, 1, "done\n")
  }
  if config.TransFile != "" {
    printStderr(config, 1, "Writing transition posterior track to `%s'... ", config.TransFile)
    fgToBg, err := hmm.TransitionPosteriors(sites.Meth, reset, parameters, FgToBg)
    if err != nil {
      log.Fatal(err)
    }
    bgToFg, err := hmm.TransitionPosteriors(sites.Meth, reset, parameters, BgToFg)
    if err != nil {
      log.Fatal(err)
    }
    for i := 0; i < len(fgToBg); i++ {
      fgToBg[i] = math.Max(fgToBg[i], bgToFg[i])
    }
    if err := WriteScoreTrack(config.TransFile, sites.Regions, fgToBg, trackName(config, "transition-posteriors")); err != nil {
      printStderr(config, 1, "failed\n")
      log.Fatal(err)
    }
    printStderr(config, 1, "done\n")
  }

  domains := BuildDomains(sites.Regions, postScores, reset, classes)

  // calibrate the score cutoff on data shuffled within each chain
  printStderr(config, 1, "Computing score cutoff on shuffled data... ")
  rng      := rand.New(rand.NewSource(config.Seed))
  methNull := make([]CountPair, len(sites.Meth))
  copy(methNull, sites.Meth)
  ShuffleCounts(rng, methNull, reset)

  classesNull    := decode(config, hmm, methNull, reset, parameters)
  postScoresNull := posteriorScores(hmm, methNull, reset, parameters)
  domainsNull    := BuildDomains(sites.Regions, postScoresNull, reset, classesNull)

  cutoff := PosteriorCutoff(domainsNull, config.Fdr)
  printStderr(config, 1, "done\n")
  printStderr(config, 1, "Filtering domains at FDR %g (score cutoff %g)\n", config.Fdr, cutoff)

  filtered := FilterDomains(domains, cutoff)
  printStderr(config, 1, "Domains retained: %d of %d\n", len(filtered), len(domains))

  if config.Output == "" {
    if err := WriteDomains(os.Stdout, filtered); err != nil {
      log.Fatal(err)
    }
  } else {
    granges := DomainsToGRanges(filtered)
    if err := granges.ExportBed6(config.Output, false); err != nil {
      log.Fatal(err)
    }
  }
}

/* -------------------------------------------------------------------------- */

func main() {

  config  := Config{}
  options := getopt.New()

  optOutput     := options. StringLong("output",          'o',     "", "output BED file with hypomethylated domains [default: stdout]")
  optScores     := options. StringLong("scores",          's',     "", "write per-site posterior scores (bedGraph format)")
  optTrans      := options. StringLong("trans",           't',     "", "write per-site transition posteriors (bedGraph format)")
  optDesert     := options.    IntLong("desert",          'd',   2000, "desert size; gaps larger than this break the HMM chain")
  optIterations := options.    IntLong("max-iterations",  'i',     10, "maximum number of Baum-Welch iterations")
  optFdr        := options. StringLong("fdr",             'F', "0.05", "target false discovery rate")
  optViterbi    := options.   BoolLong("viterbi",         'V',         "use Viterbi decoding [default: posterior decoding]")
  optBrowser    := options.   BoolLong("browser",         'B',         "add track lines for genome browsers")
  optName       := options. StringLong("name",            'N',     "", "data set name used in browser track lines")
  optSeed       := options.    IntLong("seed",             0 ,      1, "seed for the shuffling step of the FDR calibration")
  optThreads    := options.    IntLong("threads",          0 ,      1, "number of threads")
  optVerbose    := options.CounterLong("verbose",         'v',         "verbose level [-v or -vv]")
  optHelp       := options.   BoolLong("help",            'h',         "print help")

  options.SetParameters("<METHYLATION_COUNTS.bed>")
  options.Parse(os.Args)

  // parse options
  //////////////////////////////////////////////////////////////////////////////
  if *optHelp {
    options.PrintUsage(os.Stdout)
    os.Exit(0)
  }
  if *optVerbose != 0 {
    config.Verbose = *optVerbose
  }
  if len(options.Args()) != 1 {
    options.PrintUsage(os.Stderr)
    os.Exit(1)
  }
  fdr, err := strconv.ParseFloat(*optFdr, 64)
  if err != nil {
    log.Fatalf("invalid fdr argument `%s'", *optFdr)
  }
  if *optDesert < 0 {
    log.Fatalf("invalid desert size `%d'", *optDesert)
  }
  if *optIterations < 1 {
    log.Fatalf("invalid number of iterations `%d'", *optIterations)
  }
  if *optThreads < 1 {
    log.Fatalf("invalid number of threads `%d'", *optThreads)
  }
  config.Output        = *optOutput
  config.ScoresFile    = *optScores
  config.TransFile     = *optTrans
  config.Name          = *optName
  config.DesertSize    = *optDesert
  config.MaxIterations = *optIterations
  config.Fdr           =  fdr
  config.Seed          =  int64(*optSeed)
  config.Threads       = *optThreads
  config.Viterbi       = *optViterbi
  config.Browser       = *optBrowser

  findHypomethylatedRegions(config, options.Args()[0])
}
