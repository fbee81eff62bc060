package msgpack

import (
	"io"
	"sync"
)

// Factory owns a pair of extension registries plus pools of Encoders
// and Decoders built against them. Once Freeze is called the
// registries are treated as read-only and safe for concurrent Lookup
// from many minted Encoders/Decoders (spec §4.5, §4.6).
type Factory struct {
	packers   *PackerRegistry
	unpackers *UnpackerRegistry
	frozen    bool

	encOpts EncoderOptions
	decOpts DecoderOptions

	encPool *pool
	decPool *pool
}

// NewFactory returns a Factory with the standard timestamp extension
// already registered.
func NewFactory(encOpts EncoderOptions, decOpts DecoderOptions) *Factory {
	f := &Factory{
		packers:   NewPackerRegistry(),
		unpackers: NewUnpackerRegistry(),
		encOpts:   encOpts,
		decOpts:   decOpts,
		encPool:   newPool(32),
		decPool:   newPool(32),
	}
	registerBuiltinExtensions(f.packers, f.unpackers)
	return f
}

// RegisterType installs a non-recursive packer and unpacker pair for
// the given extension type id and sample value. It panics if called
// after Freeze.
func (f *Factory) RegisterType(typeID int8, sample interface{}, pack PackerFunc, unpack UnpackerFunc, flags Flag) error {
	f.mustNotBeFrozen()
	if err := f.packers.Register(typeID, sample, pack, flags); err != nil {
		return err
	}
	return f.unpackers.Register(typeID, sample, unpack, flags)
}

// RegisterRecursiveType installs a recursive packer and unpacker pair.
func (f *Factory) RegisterRecursiveType(typeID int8, sample interface{}, pack RecursivePackerFunc, unpack RecursiveUnpackerFunc, flags Flag) error {
	f.mustNotBeFrozen()
	if err := f.packers.RegisterRecursive(typeID, sample, pack, flags); err != nil {
		return err
	}
	return f.unpackers.RegisterRecursive(typeID, sample, unpack, flags)
}

func (f *Factory) mustNotBeFrozen() {
	if f.frozen {
		panic(&FrozenError{Reason: "cannot register a type on a frozen factory"})
	}
}

// Freeze marks the factory's registries as complete; no further
// registration is permitted. Encoders and Decoders minted after
// Freeze share the registries directly instead of cloning them, since
// there is no longer any mutation to isolate against.
func (f *Factory) Freeze() { f.frozen = true }

// NewEncoder mints an Encoder bound to this factory's packer
// registry. While the factory is unfrozen the registry is cloned so
// that later RegisterType/RegisterRecursiveType calls cannot mutate
// an Encoder already in flight; once frozen, minted Encoders share
// the registry directly since it can no longer change.
func (f *Factory) NewEncoder(sink io.Writer) *Encoder {
	packers := f.packers
	if !f.frozen {
		packers = packers.Clone()
	}
	return NewEncoder(sink, f.encOpts, packers)
}

// NewDecoder mints a Decoder bound to this factory's unpacker
// registry, cloning it while the factory is unfrozen for the same
// isolation reason as NewEncoder.
func (f *Factory) NewDecoder() *Decoder {
	unpackers := f.unpackers
	if !f.frozen {
		unpackers = unpackers.Clone()
	}
	return NewDecoder(f.decOpts, unpackers)
}

// WithEncoder checks out a pooled Encoder, passes it to fn, and
// returns it to the pool afterward regardless of error.
func (f *Factory) WithEncoder(sink io.Writer, fn func(*Encoder) error) error {
	e := f.encPool.getEncoder(f)
	e.BindSink(sink)
	err := fn(e)
	e.Reset()
	e.BindSink(nil)
	f.encPool.putEncoder(e)
	return err
}

// WithDecoder checks out a pooled Decoder, passes it to fn, and
// returns it to the pool afterward regardless of error.
func (f *Factory) WithDecoder(fn func(*Decoder) error) error {
	d := f.decPool.getDecoder(f)
	err := fn(d)
	d.Reset()
	f.decPool.putDecoder(d)
	return err
}

// pool is a bounded LIFO stack of reusable Encoders or Decoders,
// guarded by an explicit mutex (spec §4.6: pooling must be bounded,
// LIFO, and mutex-guarded rather than relying on sync.Pool's
// unspecified eviction behavior).
type pool struct {
	mu       sync.Mutex
	encoders []*Encoder
	decoders []*Decoder
	capacity int
}

func newPool(capacity int) *pool {
	return &pool{capacity: capacity}
}

func (p *pool) getEncoder(f *Factory) *Encoder {
	p.mu.Lock()
	n := len(p.encoders)
	if n == 0 {
		p.mu.Unlock()
		return f.NewEncoder(nil)
	}
	e := p.encoders[n-1]
	p.encoders = p.encoders[:n-1]
	p.mu.Unlock()
	return e
}

func (p *pool) putEncoder(e *Encoder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.encoders) >= p.capacity {
		return
	}
	p.encoders = append(p.encoders, e)
}

func (p *pool) getDecoder(f *Factory) *Decoder {
	p.mu.Lock()
	n := len(p.decoders)
	if n == 0 {
		p.mu.Unlock()
		return f.NewDecoder()
	}
	d := p.decoders[n-1]
	p.decoders = p.decoders[:n-1]
	p.mu.Unlock()
	return d
}

func (p *pool) putDecoder(d *Decoder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.decoders) >= p.capacity {
		return
	}
	p.decoders = append(p.decoders, d)
}
