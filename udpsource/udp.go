// Package udpsource provides the default recv.DatagramSource: a UDP socket
// reader with a configurable receive buffer size and optional multicast
// group join, per spec.md §6. It is a named external interface's concrete
// implementation, not part of the core reassembly engine -- the core only
// depends on recv.DatagramSource.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package udpsource

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/shaoguangleo/spead2/cmn"
	"github.com/shaoguangleo/spead2/cmn/cos"
	"github.com/shaoguangleo/spead2/recv"
)

// Config configures one UDP Source.
type Config struct {
	// Addr is the local endpoint to bind, e.g. ":8888" or "239.1.2.3:8888"
	// for a multicast group (in which case Interface should usually be set).
	Addr string

	// Interface, if set, is the network interface to bind for multicast
	// group membership (ipv4.PacketConn.JoinGroup) and/or outbound
	// interface selection.
	Interface string

	// RecvBufferSize requests SO_RCVBUF via golang.org/x/sys/unix, bytes.
	// Zero uses the process-wide cmn.Config value (1 MiB by default).
	RecvBufferSize int

	// MaxDatagramSize bounds the per-Poll read buffer. Zero defaults to 9200
	// (jumbo-frame safe for SPEAD's typical 8-64KiB-heap, 1500-9000B-MTU
	// deployments).
	MaxDatagramSize int

	// ReadTimeout, if non-zero and smaller than the internal poll slice,
	// bounds each individual socket read further -- it never ends Poll on
	// its own (only ctx cancellation or Close do that), it only controls
	// how promptly a read syscall returns control to the ctx.Done() check.
	ReadTimeout time.Duration
}

// ConfigFromCmn fills in cfg.RecvBufferSize from the process-wide
// cmn.Config's Socket.RecvBufferSize (spec.md §6's "configurable socket
// buffer size, default 1 MiB") when the caller left it unset.
func ConfigFromCmn(c *cmn.Config, cfg Config) Config {
	if cfg.RecvBufferSize == 0 {
		cfg.RecvBufferSize = c.Socket.RecvBufferSize
	}
	return cfg
}

// Source is the default recv.DatagramSource: one *net.UDPConn, optionally
// joined to a multicast group, with its own small recv buffer reused across
// Poll calls (the returned slice is only valid until the next Poll -- callers
// that need it to live longer, e.g. across a placement+copy, must copy out
// of it before calling Poll again; recv.Stream's usage does exactly that,
// copying payload bytes into the chunk before looping).
type Source struct {
	conn   *net.UDPConn
	pktBuf []byte
	cfg    Config

	closed bool
}

var _ recv.DatagramSource = (*Source)(nil)

// Open binds a UDP socket per cfg: SO_RCVBUF tuning via unix.SetsockoptInt,
// optional multicast join via golang.org/x/net/ipv4, mirroring spec.md §6's
// "binds a UDP socket to an endpoint with configurable socket buffer size
// and optional multicast join / interface bind".
func Open(cfg Config) (*Source, error) {
	cfg = ConfigFromCmn(cmn.Get(), cfg)
	if cfg.MaxDatagramSize <= 0 {
		cfg.MaxDatagramSize = 9200
	}

	laddr, err := net.ResolveUDPAddr("udp", cfg.Addr)
	if err != nil {
		return nil, errors.Wrap(err, "udpsource: resolve addr")
	}

	var iface *net.Interface
	if cfg.Interface != "" {
		iface, err = net.InterfaceByName(cfg.Interface)
		if err != nil {
			return nil, errors.Wrapf(err, "udpsource: interface %q", cfg.Interface)
		}
	}

	var conn *net.UDPConn
	if laddr.IP != nil && laddr.IP.IsMulticast() {
		conn, err = net.ListenMulticastUDP("udp", iface, laddr)
	} else {
		conn, err = net.ListenUDP("udp", laddr)
	}
	if err != nil {
		return nil, errors.Wrap(err, "udpsource: listen")
	}

	if cfg.Interface != "" && laddr.IP != nil && laddr.IP.IsMulticast() {
		pc := ipv4.NewPacketConn(conn)
		if err := pc.JoinGroup(iface, laddr); err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "udpsource: join multicast group")
		}
	}

	if cfg.RecvBufferSize > 0 {
		if err := setRecvBufferSize(conn, cfg.RecvBufferSize); err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "udpsource: SO_RCVBUF")
		}
	}

	return &Source{
		conn:   conn,
		pktBuf: make([]byte, cfg.MaxDatagramSize),
		cfg:    cfg,
	}, nil
}

// setRecvBufferSize sets SO_RCVBUF directly via unix.SetsockoptInt. This is
// the same socket option net.UDPConn.SetReadBuffer sets, so the kernel still
// caps the size at its configured maximum (net.core.rmem_max on Linux)
// without reporting an error.
func setRecvBufferSize(conn *net.UDPConn, size int) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = rawConn.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// pollSlice bounds every individual socket read when neither ctx nor
// cfg.ReadTimeout supplies a nearer deadline, so a blocked read always wakes
// periodically to re-check ctx.Done() -- a raw net.UDPConn read has no way
// to observe context cancellation directly.
const pollSlice = 200 * time.Millisecond

// Poll blocks until a datagram arrives, ctx is cancelled, or the source is
// closed. The returned slice aliases Source's internal buffer and is only
// valid until the next Poll call.
func (s *Source) Poll(ctx context.Context) ([]byte, time.Time, error) {
	if s.closed {
		return nil, time.Time{}, recv.ErrSourceClosed
	}

	for {
		select {
		case <-ctx.Done():
			return nil, time.Time{}, ctx.Err()
		default:
		}

		sliceDeadline := time.Now().Add(pollSlice)
		if s.cfg.ReadTimeout > 0 {
			if rt := time.Now().Add(s.cfg.ReadTimeout); rt.Before(sliceDeadline) {
				sliceDeadline = rt
			}
		}
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(sliceDeadline) {
			sliceDeadline = ctxDeadline
		}
		_ = s.conn.SetReadDeadline(sliceDeadline)

		n, _, err := s.conn.ReadFromUDP(s.pktBuf)
		if err == nil {
			return s.pktBuf[:n], time.Now(), nil
		}
		if s.closed {
			return nil, time.Time{}, recv.ErrSourceClosed
		}
		if cos.IsErrSyscallTimeout(err) || isTimeoutErr(err) {
			continue // slice expired without data; loop re-checks ctx.Done()
		}
		return nil, time.Time{}, errors.Wrap(err, "udpsource: read")
	}
}

func isTimeoutErr(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}

// Close closes the underlying socket; any blocked Poll returns
// recv.ErrSourceClosed.
func (s *Source) Close() error {
	s.closed = true
	return s.conn.Close()
}
