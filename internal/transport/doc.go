// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket boundary for the event queue: nonblocking TCP and unix-domain
// sockets, socket pairs and address resolution, separated by build tags
// into a POSIX and a Windows implementation. Every failure comes back as
// a tagged api.Error.

package transport
