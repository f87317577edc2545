package control

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// Ask sends one request line to the server at addr and returns the reply.
func Ask(ctx context.Context, addr, text string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("control: dial %s: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(text)); err != nil {
		return "", fmt.Errorf("control: send: %w", err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("control: read reply: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
