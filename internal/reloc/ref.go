package reloc

import "github.com/gogpu/cmdstream/bo"

// Ref is an owned reference to a buffer object. The zero Ref owns nothing.
type Ref struct {
	obj bo.Object
}

// Acquire takes a reference on obj and returns it as an owned Ref.
func Acquire(obj bo.Object) Ref {
	obj.Ref()
	return Ref{obj: obj}
}

// Held reports whether r still owns a reference.
func (r Ref) Held() bool { return r.obj != nil }

// Object returns the referenced object, or nil once released.
func (r Ref) Object() bo.Object { return r.obj }

// Release drops the reference. Releasing twice is a no-op.
func (r *Ref) Release() {
	if r.obj == nil {
		return
	}
	r.obj.Unref()
	r.obj = nil
}
