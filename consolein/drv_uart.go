// drv_uart is the console input driver behind the emulated UART.
//
// The guest polls its UART: it reads a status register, and fetches a
// byte only once one is reported waiting.  To make that poll cheap we
// decouple collection from consumption: a goroutine gathers keyboard
// input into a buffered channel, and the driver's Peek/Read just
// inspect the channel.
//
// On an interactive terminal the collector is termbox, which owns the
// raw-mode keyboard and decodes keys to bytes.  When stdin is not a
// terminal - piped input, scripted runs - termbox cannot start, so a
// plain reader goroutine consumes stdin instead and the channel close
// marks end-of-input, which the dispatcher delivers to the guest as
// the CP/M end-of-file character.

package consolein

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/nsf/termbox-go"
	"golang.org/x/term"
)

// uartBufferSize is how many undelivered keystrokes we hold; the
// guest consumes far faster than anybody types.
const uartBufferSize = 64

// UARTInput collects console input in the background and serves it to
// the polled reads the UART model performs.
type UARTInput struct {

	// pending carries collected bytes from the collector
	// goroutine to Read.
	pending chan byte

	// eof is set by the collector once the input is exhausted;
	// only piped input ever ends.
	eof atomic.Bool

	// interactive records which collector was started.
	interactive bool

	// oldState is the terminal state to restore on teardown.
	oldState *term.State

	// cancel stops the termbox collector.
	cancel context.CancelFunc
}

// Setup starts the collector appropriate to our stdin.
func (ui *UARTInput) Setup() error {

	ui.pending = make(chan byte, uartBufferSize)

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		go ui.collectPiped()
		return nil
	}

	// Interactive: raw mode first, termbox on top of it.
	var err error
	ui.oldState, err = term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return err
	}

	err = termbox.Init()
	if err != nil {
		return err
	}

	// This is "Show Cursor", which termbox hides by default.
	fmt.Printf("\x1b[?25h")

	ctx, cancel := context.WithCancel(context.Background())
	ui.cancel = cancel
	ui.interactive = true

	go ui.collectKeys(ctx)
	return nil
}

// collectKeys gathers termbox key events into the channel.
func (ui *UARTInput) collectKeys(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch ev := termbox.PollEvent(); ev.Type {
		case termbox.EventKey:
			if ev.Ch != 0 {
				ui.pending <- byte(ev.Ch)
			} else {
				ui.pending <- byte(ev.Key)
			}
		}
	}
}

// collectPiped gathers raw stdin into the channel, closing it at
// end-of-input.
func (ui *UARTInput) collectPiped() {
	var b [1]byte
	for {
		n, err := os.Stdin.Read(b[:])
		if n == 1 {
			ui.pending <- b[0]
		}
		if err != nil {
			ui.eof.Store(true)
			close(ui.pending)
			return
		}
	}
}

// TearDown stops the collector and restores the terminal.
func (ui *UARTInput) TearDown() error {
	if !ui.interactive {
		return nil
	}

	if ui.cancel != nil {
		ui.cancel()
	}
	termbox.Close()

	if ui.oldState != nil {
		return term.Restore(int(os.Stdin.Fd()), ui.oldState)
	}
	return nil
}

// Peek reports whether a byte is waiting, or the input has ended.
func (ui *UARTInput) Peek() bool {
	return len(ui.pending) > 0 || ui.eof.Load()
}

// Read consumes one collected byte without waiting.
func (ui *UARTInput) Read() (byte, error) {
	select {
	case c, ok := <-ui.pending:
		if !ok {
			return 0x00, io.EOF
		}
		return c, nil
	default:
		if ui.eof.Load() {
			return 0x00, io.EOF
		}
		return 0x00, ErrNoInput
	}
}

// GetName is part of the driver API, and returns the name of this
// driver.
func (ui *UARTInput) GetName() string {
	return "uart"
}

// init registers our driver, by name.
func init() {
	Register("uart", func() ConsoleInput {
		return new(UARTInput)
	})
}
