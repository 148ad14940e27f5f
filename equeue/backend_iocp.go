// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

//go:build windows
// +build windows

package equeue

import (
	"errors"
	"syscall"
	"unsafe"

	"fortio.org/safecast"
	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/assert"
	"github.com/momentics/hioload-fiber/internal/transport"
)

const backendName = "iocp"

const (
	skipCompletionOnSuccess = 1
	errWaitTimeout          = syscall.Errno(258)
	acceptAddrLen           = uint32(unsafe.Sizeof(windows.RawSockaddrAny{}) + 16)
	// Receives and sends stage through a heap buffer of at most this size,
	// since the kernel keeps writing after the issuing goroutine parked.
	maxTransfer = 64 << 10
)

type opKind uint8

const (
	opAccept opKind = iota + 1
	opRecv
	opSend
)

// operation is one overlapped request. The Overlapped must stay the first
// field: completion packets hand back its address.
type operation struct {
	ol      windows.Overlapped
	kind    opKind
	owner   *handle
	pending bool
	done    bool
	buf     []byte
}

// ErrInFlight is returned when a request is issued on a direction whose
// previous request was abandoned and has not completed yet.
var ErrInFlight = errors.New("equeue: previous request still owned by the kernel")

// issuable fails while the kernel still owns op.
func (op *operation) issuable(name string) error {
	if op.pending {
		return api.Wrap(name, ErrInFlight)
	}
	return nil
}

func (op *operation) reset(kind opKind, size int) {
	op.ol = windows.Overlapped{}
	op.kind = kind
	op.done = false
	if cap(op.buf) < size {
		op.buf = make([]byte, size)
	}
	op.buf = op.buf[:size]
}

type platformQueue struct {
	port    windows.Handle
	zombies map[*handle]struct{}
}

type platformHandle struct {
	associated bool
	rd         operation
	wr         operation
	pendingOps int
}

func (e *Equeue) open() error {
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return api.Errno("CreateIoCompletionPort", err)
	}
	e.port = port
	e.zombies = make(map[*handle]struct{})
	return nil
}

func (e *Equeue) shutdown() error {
	return api.Errno("CloseHandle", windows.CloseHandle(e.port))
}

func (e *Equeue) signal() error {
	return api.Errno("PostQueuedCompletionStatus", windows.PostQueuedCompletionStatus(e.port, 0, uintptr(noKey), nil))
}

// associate binds the socket to the port once, before its first request,
// so no completion can slip past.
func (e *Equeue) associate(h *handle) error {
	if h.associated {
		return nil
	}
	if _, err := windows.CreateIoCompletionPort(h.sock, e.port, uintptr(h.key), 0); err != nil {
		return api.Errno("CreateIoCompletionPort", err)
	}
	if err := windows.SetFileCompletionNotificationModes(h.sock, skipCompletionOnSuccess); err != nil {
		return api.Errno("SetFileCompletionNotificationModes", err)
	}
	h.associated = true
	h.rd.owner, h.wr.owner = h, h
	e.stats.Registrations++
	return nil
}

// forget keeps a closed handle reachable while the kernel still owns one
// of its operations.
func (e *Equeue) forget(h *handle) {
	if h.pendingOps > 0 {
		e.zombies[h] = struct{}{}
	}
}

// Dequeue blocks for the first completion, then collects whatever else is
// already queued without blocking.
func (e *Equeue) Dequeue(events []Event) (int, error) {
	assert.That(len(events) > 0, "equeue: empty event buffer")
	if e.closed {
		return 0, api.Wrap("dequeue", api.ErrClosed)
	}
	e.stats.Waits++
	n := 0
	timeout := uint32(windows.INFINITE)
	for n < len(events) {
		var (
			qty uint32
			key uintptr
			ol  *windows.Overlapped
		)
		err := windows.GetQueuedCompletionStatus(e.port, &qty, &key, &ol, timeout)
		timeout = 0
		if ol == nil {
			if err == nil {
				e.wakeArmed.Store(false)
				continue
			}
			if errors.Is(err, errWaitTimeout) || n > 0 {
				break
			}
			return 0, api.Errno("GetQueuedCompletionStatus", err)
		}
		checkKey(Key(key))
		op := (*operation)(unsafe.Pointer(ol))
		h := op.owner
		assert.That(h != nil && h.key == Key(key), "equeue: completion for an unknown operation")
		op.pending, op.done = false, true
		h.pendingOps--
		e.interested--
		if h.closed {
			if h.pendingOps == 0 {
				delete(e.zombies, h)
			}
			e.wakeOwners(h, op.kind != opSend, op.kind == opSend)
			continue
		}
		events[n] = Event{key: h.key, readable: op.kind != opSend, writable: op.kind == opSend}
		n++
	}
	e.stats.Events += uint64(n)
	return n, nil
}

// await parks until op completes. Cancellation or closing the handle
// cancels the request, and the task still waits for the packet so the
// kernel is done with the buffers.
func (e *Equeue) await(h *handle, op *operation, in api.Interest, name string) (int, error) {
	op.pending = true
	h.pendingOps++
	e.interested++
	e.claim(h, in)
	defer func() {
		if !op.done {
			_ = windows.CancelIoEx(h.sock, &op.ol)
		}
		e.release(h, in)
	}()
	canceled := false
	for !op.done {
		e.s.Schedule(true)
		if !op.done && !canceled && (e.s.Canceled() || h.closed) {
			canceled = true
			_ = windows.CancelIoEx(h.sock, &op.ol)
		}
	}
	if st := windows.NTStatus(uint32(op.ol.Internal)); st != 0 {
		if err := e.resumeErr(h, name); err != nil {
			return 0, err
		}
		return 0, api.Errno(name, st.Errno())
	}
	return int(op.ol.InternalHigh), nil
}

func (e *Equeue) accept(h *handle) (transport.Socket, error) {
	if err := e.resumeErr(h, "accept"); err != nil {
		return transport.InvalidSocket, err
	}
	if err := e.associate(h); err != nil {
		return transport.InvalidSocket, err
	}
	op := &h.rd
	if err := op.issuable("accept"); err != nil {
		return transport.InvalidSocket, err
	}
	as, err := transport.OpenLike(h.sock)
	if err != nil {
		return transport.InvalidSocket, err
	}
	op.reset(opAccept, int(2*acceptAddrLen))
	var recvd uint32
	err = windows.AcceptEx(h.sock, as, &op.buf[0], 0, acceptAddrLen, acceptAddrLen, &recvd, &op.ol)
	if err != nil {
		if !errors.Is(err, windows.ERROR_IO_PENDING) {
			_ = transport.Close(as)
			return transport.InvalidSocket, api.Errno("AcceptEx", err)
		}
		if _, err := e.await(h, op, api.EventIn, "accept"); err != nil {
			_ = transport.Close(as)
			return transport.InvalidSocket, err
		}
	}
	if err := transport.UpdateAcceptContext(as, h.sock); err != nil {
		_ = transport.Close(as)
		return transport.InvalidSocket, err
	}
	return as, nil
}

func (e *Equeue) recv(h *handle, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := e.resumeErr(h, "recv"); err != nil {
		return 0, err
	}
	if err := e.associate(h); err != nil {
		return 0, err
	}
	op := &h.rd
	if err := op.issuable("recv"); err != nil {
		return 0, err
	}
	op.reset(opRecv, min(len(p), maxTransfer))
	size, err := safecast.Conv[uint32](len(op.buf))
	if err != nil {
		return 0, api.Wrap("recv", api.ErrOverflow)
	}
	buf := windows.WSABuf{Len: size, Buf: &op.buf[0]}
	var got, flags uint32
	err = windows.WSARecv(h.sock, &buf, 1, &got, &flags, &op.ol, nil)
	if err != nil {
		if !errors.Is(err, windows.ERROR_IO_PENDING) {
			return 0, api.Errno("WSARecv", err)
		}
		n, err := e.await(h, op, api.EventIn, "recv")
		if err != nil {
			return 0, err
		}
		got = uint32(n)
	}
	return copy(p, op.buf[:got]), nil
}

func (e *Equeue) send(h *handle, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := e.resumeErr(h, "send"); err != nil {
		return 0, err
	}
	if err := e.associate(h); err != nil {
		return 0, err
	}
	op := &h.wr
	if err := op.issuable("send"); err != nil {
		return 0, err
	}
	op.reset(opSend, min(len(p), maxTransfer))
	copy(op.buf, p)
	size, err := safecast.Conv[uint32](len(op.buf))
	if err != nil {
		return 0, api.Wrap("send", api.ErrOverflow)
	}
	buf := windows.WSABuf{Len: size, Buf: &op.buf[0]}
	var sent uint32
	err = windows.WSASend(h.sock, &buf, 1, &sent, 0, &op.ol, nil)
	if err != nil {
		if !errors.Is(err, windows.ERROR_IO_PENDING) {
			return 0, api.Errno("WSASend", err)
		}
		n, err := e.await(h, op, api.EventOut, "send")
		if err != nil {
			return 0, err
		}
		sent = uint32(n)
	}
	return int(sent), nil
}

// finishConnect has nothing to wait for: Connect is synchronous here.
func (e *Equeue) finishConnect(h *handle) error {
	return transport.ConnectResult(h.sock)
}
