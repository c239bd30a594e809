package identity

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sistedes/dspace-migrator/internal/archive"
)

// ErrNoInput is returned when the operator's input ends mid-prompt.
var ErrNoInput = errors.New("no operator input")

// ConsoleDisambiguator asks an operator on a terminal. A non-numeric answer
// counts as "none"; an out-of-range number asks again.
type ConsoleDisambiguator struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsoleDisambiguator reads answers from in and writes prompts to out.
func NewConsoleDisambiguator(in io.Reader, out io.Writer) *ConsoleDisambiguator {
	return &ConsoleDisambiguator{in: bufio.NewReader(in), out: out}
}

// Choose implements Disambiguator.
func (c *ConsoleDisambiguator) Choose(ctx context.Context, a Author, candidates []archive.Person) (int, error) {
	fmt.Fprintf(c.out, "\nAuthor %q", a.FullName())
	if a.Email != "" {
		fmt.Fprintf(c.out, " <%s>", a.Email)
	}
	if a.Affiliation != "" {
		fmt.Fprintf(c.out, " (%s)", a.Affiliation)
	}
	fmt.Fprintln(c.out, " may already exist:")
	fmt.Fprintln(c.out, "  [0] None of them")
	for i, p := range candidates {
		fmt.Fprintf(c.out, "  [%d] %s", i+1, describePerson(p))
		fmt.Fprintln(c.out)
	}

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		fmt.Fprintf(c.out, "Enter choice [0-%d]: ", len(candidates))
		input, err := c.in.ReadString('\n')
		input = strings.TrimSpace(input)
		if err != nil && input == "" {
			if errors.Is(err, io.EOF) {
				return 0, ErrNoInput
			}
			return 0, err
		}

		n, convErr := strconv.Atoi(input)
		if convErr != nil {
			return 0, nil
		}
		if n < 0 || n > len(candidates) {
			fmt.Fprintf(c.out, "Invalid choice. Please enter a number between 0 and %d.\n", len(candidates))
			continue
		}
		return n, nil
	}
}

func describePerson(p archive.Person) string {
	var b strings.Builder
	b.WriteString(p.Variant())
	if len(p.Emails) > 0 {
		fmt.Fprintf(&b, " <%s>", strings.Join(p.Emails, ", "))
	}
	if len(p.Affiliations) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(p.Affiliations, "; "))
	}
	if len(p.NameVariants) > 0 {
		fmt.Fprintf(&b, " aka %s", strings.Join(p.NameVariants, " / "))
	}
	return b.String()
}
