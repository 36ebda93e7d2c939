package engine

import "sync"

// Buffer pools back the read/response/header byte slices every
// connection churns through. They use sync.Pool even though the
// reactor itself is single-threaded; NewPools also hands pools to the
// bridge dispatch glue, and a sync.Pool stays safe whichever goroutine
// borrows from it.
type bufferPool struct {
	pool      sync.Pool
	chunkSize int
}

func newBufferPool(chunkSize int) *bufferPool {
	return &bufferPool{
		chunkSize: chunkSize,
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, 0, chunkSize)
				return &b
			},
		},
	}
}

func (p *bufferPool) Get() []byte {
	b := p.pool.Get().(*[]byte)
	return (*b)[:0]
}

func (p *bufferPool) Put(b []byte) {
	if cap(b) < p.chunkSize {
		return
	}
	p.pool.Put(&b)
}

// Pools groups the three buffer classes the reactor draws on per
// connection.
type Pools struct {
	Read     *bufferPool
	Response *bufferPool
	Header   *bufferPool
}

func newPools(cfg Config) *Pools {
	return NewPools(cfg)
}

// NewPools constructs the three buffer pools a dispatcher needs to
// assemble responses, sized from cfg. Exposed so callers outside this
// package (the bridge dispatch glue) can share the same sizing rules
// the reactor itself uses for its read buffers.
func NewPools(cfg Config) *Pools {
	return &Pools{
		Read:     newBufferPool(cfg.ReadBufferSize),
		Response: newBufferPool(cfg.ResponseBufferSize),
		Header:   newBufferPool(cfg.HeaderBufferSize),
	}
}
