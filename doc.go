// Package rhi provides a backend-agnostic GPU execution layer for Go.
//
// # Overview
//
// rhi describes GPU resources (buffers, textures, streams, meshes,
// acceleration structures, bindless tables and shaders) and the operations
// on them (uploads, downloads, copies, builds, dispatches) once, and runs
// them on interchangeable native backends. Backends register themselves by
// name and are selected at startup:
//
//	import (
//	    "github.com/gogpu/rhi"
//	    _ "github.com/gogpu/rhi/backend/cuda"
//	)
//
//	ctx := rhi.NewContext()
//	dev, err := ctx.CreateDevice("cuda")
//	if err != nil {
//	    // backend not registered or not available
//	}
//	defer dev.Close()
//
// # Handles
//
// Every resource is identified by a [Handle]: a tagged arena index issued
// by the device that created it. The tag names the resource kind and the
// generation rejects handles whose slot was already released. A handle is
// meaningful only to the device that issued it.
//
// # Commands
//
// Work is described by Commands, plain values that reference handles and
// carry sizes, offsets and pixel metadata. Commands are batched into a
// [CommandList] and submitted to a stream:
//
//	s, _ := rhi.NewStream(dev)
//	s.Add(rhi.BufferUploadCommand{Buffer: buf, Data: src, Async: true})
//	s.Add(rhi.BufferDownloadCommand{Buffer: buf, Data: dst, Async: true})
//	s.Synchronize()
//
// Each backend executes commands through an [OpTable] that maps every
// [CommandType] to one native routine.
//
// # Errors
//
// Driver failures are fatal: they are logged and routed to the Context's
// fatal handler, and never return to the caller. Capacity, lookup and
// argument errors are returned as ordinary errors that can be checked
// with errors.Is.
package rhi
