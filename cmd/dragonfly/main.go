package main

import (
	"bufio"
	"context"
	"crypto/cipher"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	dragonfly "github.com/backkem/dragonfly-go"
	"github.com/backkem/dragonfly-go/internal/report"
	"github.com/backkem/dragonfly-go/internal/timinglog"
	"github.com/backkem/dragonfly-go/sidechannel"
	"go.dedis.ch/kyber/v4/util/random"
	"go.dedis.ch/kyber/v4/xof/blake2xb"
)

// Used by crack when no wordlist is given
var samplePasswords = []string{"password", "12345678", "password123", "letmein", "dragonfly", "hello12345", "guestwifi"}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: dragonfly <command> [flags]

Commands:
  derive    derive a password element
  simulate  record reference iteration counts for spoofed client addresses
  crack     narrow a wordlist with recorded iteration counts
  compare   compare reference and fixed-effort iteration counts

Run "dragonfly <command> -h" for the flags of a command.
`)
}

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "derive":
		runDerive(args)
	case "simulate":
		runSimulate(args)
	case "crack":
		runCrack(args)
	case "compare":
		runCompare(args)
	case "-h", "-help", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func runDerive(args []string) {
	fs := flag.NewFlagSet("derive", flag.ExitOnError)
	var (
		password = fs.String("password", "letmein", "Password")
		local    = fs.String("local", "00:00:00:00:00:00", "Local identifier (client MAC)")
		peer     = fs.String("peer", "00:00:00:00:00:00", "Peer identifier (AP MAC)")
		fixed    = fs.Bool("fixed", false, "Use the fixed-effort generator")
		kMin     = fs.Int("kmin", dragonfly.DefaultKMin, "Minimum iterations of the fixed-effort generator")
		poolSize = fs.Int("pool", dragonfly.DefaultPoolSize, "Pool size of the fixed-effort generator")
		trace    = fs.Bool("trace", false, "Print the iteration trace")
	)
	fs.Parse(args)

	ids, err := dragonfly.NewIdentifierPair(*local, *peer)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	opts := dragonfly.DefaultOptions()
	opts.KMin = *kMin
	opts.PoolSize = *poolSize
	d, err := dragonfly.New(opts)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	start := time.Now()
	var pe *dragonfly.PasswordElement
	if *fixed {
		pe, err = d.GeneratePEFixed([]byte(*password), ids)
	} else {
		pe, err = d.GeneratePEVariable([]byte(*password), ids)
	}
	elapsed := time.Since(start)
	if err != nil {
		log.Fatalf("Error deriving password element: %v", err)
	}

	fmt.Printf("Group:      %s\n", d.Options().Ciphersuite.Group)
	fmt.Printf("Identifiers: %s\n", ids)
	fmt.Printf("Iterations: %d (%v)\n", pe.Iterations, elapsed)
	if *fixed {
		fmt.Printf("Pool size:  %d\n", pe.PoolSize)
	}
	if *trace {
		fmt.Printf("Trace:      %s\n", pe.Trace)
	}
	fmt.Printf("PE:\n  %s\n", formatHex(pe.Value.Text(16), 64))
}

func runSimulate(args []string) {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	var (
		passwords = fs.String("passwords", "password123,hello12345,dragonfly,letmein,guestwifi", "Comma-separated passwords")
		peer      = fs.String("peer", "AA:BB:CC:DD:EE:FF", "AP identifier")
		numMACs   = fs.Int("macs", 10, "Spoofed client addresses per password")
		out       = fs.String("out", "timing_results.csv", "CSV output path")
		seed      = fs.String("seed", "", "Seed for client addresses (default: crypto/rand)")
	)
	fs.Parse(args)

	ap, err := dragonfly.ParseIdentifier(*peer)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	d, err := dragonfly.New(nil)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	oracle := sidechannel.NewReferenceOracle(d)
	stream := newStream(*seed)

	var records []timinglog.Record
	for _, pw := range splitList(*passwords) {
		pairs := make([]dragonfly.IdentifierPair, *numMACs)
		for i := range pairs {
			pairs[i] = dragonfly.IdentifierPair{Local: dragonfly.RandomIdentifier(stream), Peer: ap}
		}
		observations, err := sidechannel.Observe(oracle, []byte(pw), pairs)
		if err != nil {
			log.Fatalf("Error observing %q: %v", pw, err)
		}
		for _, obs := range observations {
			fmt.Printf("[%s] MAC=%s -> loops=%d, time=%.1f us\n",
				pw, obs.IDs.Local, obs.Iterations, float64(obs.Elapsed.Nanoseconds())/1e3)
			records = append(records, timinglog.Record{Secret: pw, Observation: obs})
		}
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("Error creating %s: %v", *out, err)
	}
	defer f.Close()
	if err := timinglog.Write(f, records); err != nil {
		log.Fatalf("Error writing %s: %v", *out, err)
	}
	fmt.Printf("Saved timing data to %s\n", *out)
}

func runCrack(args []string) {
	fs := flag.NewFlagSet("crack", flag.ExitOnError)
	var (
		logPath    = fs.String("log", "timing_results.csv", "Timing log written by simulate")
		wordlist   = fs.String("wordlist", "", "Candidate passwords, one per line (default: built-in sample)")
		target     = fs.String("target", "", "Secret whose observations to use (default: first in the log)")
		numWorkers = fs.Int("workers", 0, "Number of parallel workers (0 = auto-detect based on CPU cores)")
	)
	fs.Parse(args)

	f, err := os.Open(*logPath)
	if err != nil {
		log.Fatalf("Error opening %s: %v", *logPath, err)
	}
	records, err := timinglog.Read(f)
	f.Close()
	if err != nil {
		log.Fatalf("Error reading %s: %v", *logPath, err)
	}

	// The log holds the victim secret only because it was simulated
	secret := *target
	if secret == "" {
		secrets := timinglog.Secrets(records)
		if len(secrets) == 0 {
			log.Fatalf("Error: %s holds no observations", *logPath)
		}
		secret = secrets[0]
	}
	observations := timinglog.Observations(records, secret)
	fmt.Printf("Attacker collected timing info for %d attempts on target network.\n", len(observations))

	words := samplePasswords
	if *wordlist != "" {
		words, err = loadWordlist(*wordlist)
		if err != nil {
			log.Fatalf("Error loading wordlist: %v", err)
		}
	}
	candidates := make([][]byte, len(words))
	for i, w := range words {
		candidates[i] = []byte(w)
	}

	d, err := dragonfly.New(nil)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	start := time.Now()
	survivors, err := sidechannel.NarrowCandidates(context.Background(), sidechannel.NewReferenceOracle(d), observations, candidates,
		&sidechannel.NarrowOptions{
			NumWorkers: *numWorkers,
			OnProgress: func(done, total int) {
				if done%1000 == 0 {
					fmt.Printf("  Tested %d/%d candidates...\r", done, total)
				}
			},
		})
	if err != nil {
		log.Fatalf("Error narrowing candidates: %v", err)
	}
	fmt.Printf("Tested %d candidates in %v\n", len(candidates), time.Since(start))

	if len(survivors) == 0 {
		fmt.Println("No candidates matched the observed timing signature.")
		return
	}
	names := make([]string, len(survivors))
	for i, s := range survivors {
		names[i] = string(s)
	}
	fmt.Printf("Potential passwords matching timing signature: %s\n", strings.Join(names, ", "))
	if len(survivors) == 1 {
		fmt.Printf("✓ Password cracked: %q is the likely network password.\n", names[0])
	}
}

func runCompare(args []string) {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	var (
		passwords = fs.String("passwords", "password123,dragonfly", "Comma-separated passwords")
		local     = fs.String("local", "11:22:33:44:55:66", "Local identifier (client MAC)")
		peer      = fs.String("peer", "AA:BB:CC:DD:EE:FF", "Peer identifier (AP MAC)")
		runs      = fs.Int("runs", 100, "Runs per password and generator")
		html      = fs.String("html", "", "Write histograms to this HTML file")
	)
	fs.Parse(args)

	if *runs < 1 {
		log.Fatalf("Error: -runs must be at least 1")
	}
	ids, err := dragonfly.NewIdentifierPair(*local, *peer)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	d, err := dragonfly.New(nil)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	var refSeries, fixedSeries []report.Series
	for _, pw := range splitList(*passwords) {
		var refTime, fixedTime time.Duration
		ref, err := sidechannel.Sample(*runs, func() (int, error) {
			start := time.Now()
			pe, err := d.GeneratePEVariable([]byte(pw), ids)
			refTime += time.Since(start)
			if err != nil {
				return 0, err
			}
			return pe.Iterations, nil
		})
		if err != nil {
			log.Fatalf("Error sampling reference generator: %v", err)
		}
		fixed, err := sidechannel.Sample(*runs, func() (int, error) {
			start := time.Now()
			pe, err := d.GeneratePEFixed([]byte(pw), ids)
			fixedTime += time.Since(start)
			if err != nil {
				return 0, err
			}
			return pe.Iterations, nil
		})
		if err != nil {
			log.Fatalf("Error sampling fixed-effort generator: %v", err)
		}

		fmt.Printf("Password=%q: Original loops=%.1f, time=%v;  Fixed loops=%.1f, time=%v\n",
			pw, ref.Mean(), refTime/time.Duration(*runs), fixed.Mean(), fixedTime/time.Duration(*runs))
		refSeries = append(refSeries, report.Series{Name: pw, Dist: ref})
		fixedSeries = append(fixedSeries, report.Series{Name: pw, Dist: fixed})
	}

	if len(refSeries) >= 2 {
		a, b := refSeries[0], refSeries[1]
		fmt.Printf("\nTotal variation %q vs %q: reference %.3f, fixed %.3f\n",
			a.Name, b.Name,
			sidechannel.TotalVariation(a.Dist, b.Dist),
			sidechannel.TotalVariation(fixedSeries[0].Dist, fixedSeries[1].Dist))
		if sidechannel.Distinguishable(fixedSeries[0].Dist, fixedSeries[1].Dist, sidechannel.DefaultDistinguishThreshold) {
			fmt.Println("✗ Fixed-effort iteration counts still separate the passwords")
		} else {
			fmt.Println("✓ Fixed-effort iteration counts do not separate the passwords")
		}
	}

	if *html != "" {
		f, err := os.Create(*html)
		if err != nil {
			log.Fatalf("Error creating %s: %v", *html, err)
		}
		defer f.Close()
		err = report.Render(f, "Dragonfly iteration counts",
			report.NewHistogram("Reference generator", refSeries),
			report.NewHistogram("Fixed-effort generator", fixedSeries),
		)
		if err != nil {
			log.Fatalf("Error rendering %s: %v", *html, err)
		}
		fmt.Println("Histogram page:", *html)
	}
}

// newStream returns a reproducible stream for a non-empty seed, crypto/rand otherwise
func newStream(seed string) cipher.Stream {
	if seed == "" {
		return random.New()
	}
	return blake2xb.New([]byte(seed))
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadWordlist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if w := strings.TrimRight(scanner.Text(), "\r"); w != "" {
			words = append(words, w)
		}
	}
	return words, scanner.Err()
}

// formatHex formats a hex string with line breaks for better readability
func formatHex(hexStr string, lineLength int) string {
	if len(hexStr) <= lineLength {
		return hexStr
	}

	var result strings.Builder
	for i := 0; i < len(hexStr); i += lineLength {
		end := i + lineLength
		if end > len(hexStr) {
			end = len(hexStr)
		}
		if i > 0 {
			result.WriteString("\n  ")
		}
		result.WriteString(hexStr[i:end])
	}
	return result.String()
}
