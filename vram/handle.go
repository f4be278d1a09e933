package vram

// Handle is an opaque reference to a block in one of the managed regions. Owning a handle
// means owning one unit of the block's usage count: copying a Handle does not retain it, and
// every retained or created handle must eventually be released.
type Handle int32

// NoHandle is returned by optional operations that could not be satisfied
const NoHandle Handle = -1

// Owner is implemented by the managers that hand out handles
type Owner interface {
	Retain(handle Handle)
	Release(handle Handle)
}

// Ref wraps a Handle together with the manager that owns it so that the usage count can be
// managed through Clone and Release rather than by hand
type Ref struct {
	owner  Owner
	handle Handle
}

// NewRef takes over one reference to handle, which should already have been created or
// retained by owner
func NewRef(owner Owner, handle Handle) Ref {
	if handle == NoHandle {
		return Ref{handle: NoHandle}
	}
	return Ref{owner: owner, handle: handle}
}

// Handle returns the wrapped handle, or NoHandle if the Ref has been released
func (r Ref) Handle() Handle {
	if r.owner == nil {
		return NoHandle
	}
	return r.handle
}

// Valid returns true if the Ref still holds a reference
func (r Ref) Valid() bool {
	return r.owner != nil
}

// Clone retains the handle and returns a new Ref that owns the extra reference
func (r Ref) Clone() Ref {
	if r.owner == nil {
		return Ref{handle: NoHandle}
	}

	r.owner.Retain(r.handle)
	return r
}

// Release gives up this Ref's reference. Releasing an empty Ref does nothing.
func (r *Ref) Release() {
	if r.owner == nil {
		return
	}

	r.owner.Release(r.handle)
	r.owner = nil
	r.handle = NoHandle
}
