// Package session runs the interactive question loop: read a line,
// answer it in a worker goroutine while a progress bar keeps moving,
// print the result, repeat until the exit keyword.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// Answerer is the question answering operation driven by the loop.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

type Config struct {
	ExitKeyword  string
	TickInterval time.Duration
}

type Session struct {
	config   Config
	answerer Answerer
	in       io.Reader
	out      io.Writer
}

func New(config Config, answerer Answerer, in io.Reader, out io.Writer) *Session {
	if config.ExitKeyword == "" {
		config.ExitKeyword = "exit"
	}
	if config.TickInterval == 0 {
		config.TickInterval = 100 * time.Millisecond
	}
	return &Session{config: config, answerer: answerer, in: in, out: out}
}

// Run loops until the exit keyword (case-insensitive) or end of
// input. A failed question prints a diagnostic and the loop goes on;
// it never ends the session.
func (s *Session) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	userPrompt := color.New(color.FgGreen).FprintfFunc()
	assistantPrompt := color.New(color.FgCyan).FprintfFunc()
	errorPrompt := color.New(color.FgRed).FprintfFunc()

	for {
		userPrompt(s.out, "\nYou: ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, s.config.ExitKeyword) {
			assistantPrompt(s.out, "\nGoodbye!\n")
			return nil
		}

		answer, err := s.ask(ctx, question)
		if err != nil {
			errorPrompt(s.out, "Sorry, something went wrong with that question: %v\n", err)
			errorPrompt(s.out, "You can try asking something else.\n")
			continue
		}

		assistantPrompt(s.out, "Assistant: %s\n", answer)
	}
}

type result struct {
	answer string
	err    error
}

// ask runs the answerer in its own goroutine so the progress bar keeps
// rendering while the worker blocks on network calls. Receiving on the
// done channel is the synchronization barrier: nothing prints after it
// except the final bar state, then the answer.
func (s *Session) ask(ctx context.Context, question string) (string, error) {
	done := make(chan result, 1)
	go func() {
		answer, err := s.answerer.Answer(ctx, question)
		done <- result{answer: answer, err: err}
	}()

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionSetDescription(color.CyanString("Thinking...")),
		progressbar.OptionSetWidth(30),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	percent := 0
	for {
		select {
		case <-ticker.C:
			// Cyclic: the bar wraps around until the worker is done.
			percent = (percent + 2) % 100
			bar.Set(percent)
		case res := <-done:
			bar.Finish()
			fmt.Fprintln(s.out)
			return res.answer, res.err
		}
	}
}
