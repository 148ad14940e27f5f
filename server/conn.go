// File: server/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-fiber/equeue"
	"github.com/momentics/hioload-fiber/internal/transport"
	"github.com/momentics/hioload-fiber/sched"
)

// conn is one echo session. The reader fills the ring from the socket,
// the writer drains it back; each wakes the other through its Wait.
type conn struct {
	srv       *Server
	c         *equeue.Client
	ring      ring
	readWait  *sched.Wait
	writeWait *sched.Wait
	reader    sched.TaskID
	writer    sched.TaskID
	// finished is set by whichever task stops first; the second one
	// tears the session down.
	finished bool
}

func (srv *Server) spawn(c *equeue.Client) error {
	cn := &conn{
		srv:       srv,
		c:         c,
		ring:      newRing(ringBuffers.Get()),
		readWait:  sched.NewWait(srv.s),
		writeWait: sched.NewWait(srv.s),
	}
	var err error
	if cn.reader, err = srv.s.Create(srv.cfg.StackSize, cn.readLoop, nil); err != nil {
		ringBuffers.Put(cn.ring.buf)
		return err
	}
	if cn.writer, err = srv.s.Create(srv.cfg.StackSize, cn.writeLoop, nil); err != nil {
		_ = srv.s.Destroy(cn.reader)
		ringBuffers.Put(cn.ring.buf)
		return err
	}
	srv.conns[cn] = struct{}{}
	return nil
}

func (cn *conn) readLoop(any) {
	srv := cn.srv
	for !srv.stopping && !cn.finished {
		if len(cn.ring.free()) == 0 {
			cn.readWait.Wait()
			continue
		}
		n, err := cn.c.Recv(cn.ring.free())
		if err != nil {
			if transport.IsWouldBlock(err) {
				continue
			}
			srv.log.Debug().Err(err).Msg("recv failed")
			break
		}
		if n == 0 {
			break
		}
		cn.ring.produced(n)
		srv.metrics.Add("server.bytes", uint64(n))
		cn.writeWait.Notify()
	}
	cn.finish(cn.writeWait)
}

func (cn *conn) writeLoop(any) {
	srv := cn.srv
	for !srv.stopping {
		if cn.ring.empty() {
			if cn.finished {
				break
			}
			cn.writeWait.Wait()
			continue
		}
		n, err := cn.c.Send(cn.ring.filled())
		if err != nil {
			if transport.IsWouldBlock(err) {
				continue
			}
			srv.log.Debug().Err(err).Msg("send failed")
			break
		}
		cn.ring.consumed(n)
		cn.readWait.Notify()
	}
	cn.finish(cn.readWait)
}

// finish ends the calling task. The first task to get here hands the
// session to its peer; the second one exits with destroyConn as cleanup.
func (cn *conn) finish(peer *sched.Wait) {
	if cn.finished {
		cn.srv.s.Exit(cn, cn.srv.destroyConnTask)
	}
	cn.finished = true
	peer.Notify()
}

func (srv *Server) destroyConnTask(arg any) { srv.destroyConn(arg.(*conn)) }

// destroyConn releases both tasks, both waits and the socket. It must
// not run on either task of cn.
func (srv *Server) destroyConn(cn *conn) {
	if _, ok := srv.conns[cn]; !ok {
		return
	}
	delete(srv.conns, cn)
	if err := srv.s.Destroy(cn.writer); err != nil {
		srv.log.Warn().Err(err).Stringer("task", cn.writer).Msg("release writer")
	}
	if err := srv.s.Destroy(cn.reader); err != nil {
		srv.log.Warn().Err(err).Stringer("task", cn.reader).Msg("release reader")
	}
	cn.writeWait.Destroy()
	cn.readWait.Destroy()
	ringBuffers.Put(cn.ring.buf)
	cn.ring = ring{}
	if err := cn.c.Close(); err != nil {
		srv.log.Debug().Err(err).Msg("close client")
	}
	srv.metrics.Add("server.closed", 1)
	srv.log.Debug().Int("connections", len(srv.conns)).Msg("closed client")
}
