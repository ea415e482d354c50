package review

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Summary counts decisions made in one CLI session.
type Summary struct {
	Approved int
	Rejected int
	Skipped  int
}

// RunCLI walks the pending videos one at a time, prompting on out and
// reading answers from in. Input ends the session like quitting.
func (s *Service) RunCLI(ctx context.Context, in io.Reader, out io.Writer, actor string) (Summary, error) {
	var sum Summary

	pending, err := s.Pending(ctx)
	if err != nil {
		return sum, err
	}
	if len(pending) == 0 {
		fmt.Fprintln(out, "No videos pending approval.")
		return sum, nil
	}

	scanner := bufio.NewScanner(in)
	read := func(prompt string) (string, bool) {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimSpace(scanner.Text()), true
	}

	fmt.Fprintf(out, "%d video(s) pending approval.\n", len(pending))
	for i, v := range pending {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		fmt.Fprintf(out, "\n[%d/%d] %s\n", i+1, len(pending), v.StoryTitle)
		fmt.Fprintf(out, "  score %.2f | %.1fs | %s\n", v.ViralityScore, v.DurationSeconds, v.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Fprintf(out, "  %s\n", v.URL)
		fmt.Fprintf(out, "  %s\n", s.Truncate(v.StoryBody))

	prompt:
		for {
			answer, ok := read("[a]pprove / [r]eject / [s]kip / [q]uit: ")
			if !ok {
				return sum, scanner.Err()
			}
			switch strings.ToLower(answer) {
			case "a", "approve", "y":
				if err := s.Approve(ctx, v.ID, actor); err != nil {
					fmt.Fprintf(out, "  approve failed: %v\n", err)
				} else {
					sum.Approved++
					fmt.Fprintln(out, "  approved")
				}
				break prompt
			case "r", "reject", "n":
				reason, ok := read("  reason: ")
				if !ok {
					return sum, scanner.Err()
				}
				if err := s.Reject(ctx, v.ID, reason); err != nil {
					fmt.Fprintf(out, "  reject failed: %v\n", err)
				} else {
					sum.Rejected++
					fmt.Fprintln(out, "  rejected")
				}
				break prompt
			case "s", "skip", "":
				sum.Skipped++
				break prompt
			case "q", "quit":
				return sum, nil
			default:
				fmt.Fprintln(out, "  please answer a, r, s or q")
			}
		}
	}

	fmt.Fprintf(out, "\nDone: %d approved, %d rejected, %d skipped.\n", sum.Approved, sum.Rejected, sum.Skipped)
	return sum, nil
}
