package endpoint

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/danmuck/deltaxpc/internal/protocol/session"
)

// Dial materializes a live connection from desc. It fails when the
// listener is gone, the handshake times out or the token is rejected;
// callers must not retry with the same descriptor.
func Dial(ctx context.Context, desc Descriptor, cfg session.Config) (net.Conn, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, desc.Network, desc.Address)
	if err != nil {
		return nil, err
	}
	_ = conn.SetDeadline(time.Now().Add(cfg.HandshakeTimeout))
	if err := session.WriteHello(conn, session.Hello{
		Token:   desc.Token,
		Version: session.ProtocolVersion,
		PID:     os.Getpid(),
	}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	reader := bufio.NewReader(conn)
	ack, err := session.ReadHelloAck(reader)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if ack.Status != session.AckStatusAccepted {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrRejected, ack.Message)
	}
	_ = conn.SetDeadline(time.Time{})
	return &bufferedConn{Conn: conn, r: reader}, nil
}

// bufferedConn keeps bytes the ack reader may already have pulled off the
// socket.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
