package bench

import (
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Relative gives each result's time per iteration as a multiple of the baseline's.
// Without a matching baseline every ratio is 0.
func Relative(rs []*Result, baseline string) map[string]float64 {
	var base *Result
	for _, r := range rs {
		if r.Name == baseline {
			base = r
			break
		}
	}

	rel := make(map[string]float64, len(rs))
	if base == nil || base.PerIteration() == 0 {
		for _, r := range rs {
			rel[r.Name] = 0
		}
		return rel
	}

	for _, r := range rs {
		rel[r.Name] = float64(r.PerIteration()) / float64(base.PerIteration())
	}
	return rel
}

// Report writes a table of results with grouped digits.
func Report(w io.Writer, rs []*Result, baseline string) error {
	p := message.NewPrinter(language.English)
	rel := Relative(rs, baseline)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	p.Fprintf(tw, "name\titerations\tns/iter\trelative\treturns\n")
	for _, r := range rs {
		p.Fprintf(tw, "%s\t%d\t%d\t%.3f\t%s\n",
			r.Name, r.Iterations, r.PerIteration().Nanoseconds(), rel[r.Name], strings.ReplaceAll(r.ReturnString(), "\t", " "))
	}
	return tw.Flush()
}
