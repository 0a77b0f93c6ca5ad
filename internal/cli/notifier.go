package cli

import (
	"fmt"
	"io"
)

// consoleNotifier renders driver events on the terminal.
type consoleNotifier struct {
	out io.Writer
}

func (n consoleNotifier) PaymentConfirmed(method string, totalAmount int64) {
	fmt.Fprintf(n.out, "Payment confirmed: %s, total %d\n", method, totalAmount)
}

func (n consoleNotifier) ProductNotFound(id string) {
	fmt.Fprintf(n.out, "Product %q not found\n", id)
}
