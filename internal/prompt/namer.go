package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/naming"
)

// Namer answers naming requests from a terminal. A rejected name prints
// the reason and asks again; EOF cancels.
type Namer struct {
	In  io.Reader
	Out io.Writer
}

func DefaultNamer() Namer {
	return Namer{In: os.Stdin, Out: os.Stdout}
}

// Serve answers requests from b until ctx ends.
func (n Namer) Serve(ctx context.Context, b *naming.Broker) {
	lines := make(chan string)
	go n.readLines(ctx, lines)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-b.Requests():
			n.answer(ctx, req, lines)
		}
	}
}

func (n Namer) readLines(ctx context.Context, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(n.In)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

func (n Namer) answer(ctx context.Context, req *naming.Request, lines <-chan string) {
	for {
		fmt.Fprintf(n.Out, "%s: ", req.Title)
		select {
		case <-ctx.Done():
			req.Cancel()
			return
		case <-req.Done():
			return
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(n.Out)
				req.Cancel()
				return
			}
			err := req.Submit(line)
			if err == nil {
				return
			}
			fmt.Fprintf(n.Out, "%s\n", apperrors.PublicMessage(err))
		}
	}
}
