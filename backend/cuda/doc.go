// Package cuda provides the compute-model rhi backend.
//
// The device follows the execution model of a compute API: every stream
// is an in-order queue drained by its own worker goroutine, commands are
// executed as soon as they reach the head of the queue, and kernels run
// once per dispatch index across a bounded pool of goroutines.
//
// Import the package for its side effect to register the "cuda" backend:
//
//	import _ "github.com/gogpu/rhi/backend/cuda"
//
//	dev, err := rhi.NewContext().CreateDevice("cuda", rhi.WithWorkers(8))
package cuda
