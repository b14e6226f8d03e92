package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spellclash/spellclash-go/internal/present"
	"github.com/spellclash/spellclash-go/internal/replay"
	"github.com/spellclash/spellclash-go/internal/state"
)

const viewerHelp = `replay commands:
  next | <enter>   show the next state
  prev             show the previous state
  skip <n>         move n states forward (negative goes back)
  show <n>         show state n without moving
  start            rewind
  all              print every remaining state
  quit             stop viewing
`

// viewReplay steps through r with commands read from in
func viewReplay(r *replay.Replay, console *present.Console, in io.Reader, out io.Writer) {
	fmt.Fprintf(out, "session %s (%s), %d states\n", r.SessionID, r.Mode, r.Size())
	fmt.Fprint(out, viewerHelp)

	show := func(index int, s state.Snapshot) {
		fmt.Fprintf(out, "-- state %d/%d --\n", index+1, r.Size())
		console.Board(s)
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		args := strings.Fields(scanner.Text())
		cmd := "next"
		if len(args) > 0 {
			cmd = args[0]
		}
		switch cmd {
		case "next", "n":
			if s, ok := r.Next(); ok {
				show(r.Position()-1, s)
			} else {
				fmt.Fprintln(out, "end of replay")
			}
		case "prev", "p":
			if s, ok := r.Previous(); ok {
				show(r.Position(), s)
			} else {
				fmt.Fprintln(out, "start of replay")
			}
		case "skip":
			n, err := argInt(args)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			if s, ok := r.Skip(n); ok {
				show(r.Position(), s)
			}
		case "show":
			n, err := argInt(args)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			s, ok := r.At(n - 1)
			if !ok {
				fmt.Fprintf(out, "no state %d, replay has %d\n", n, r.Size())
				continue
			}
			show(n-1, s)
		case "start":
			r.Start()
			fmt.Fprintln(out, "rewound")
		case "all":
			for {
				s, ok := r.Next()
				if !ok {
					break
				}
				show(r.Position()-1, s)
			}
		case "quit", "q", "exit":
			return
		default:
			fmt.Fprintf(out, "unknown command %q\n%s", cmd, viewerHelp)
		}
	}
}

func argInt(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: %s <n>", args[0])
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("not a number: %s", args[1])
	}
	return n, nil
}
