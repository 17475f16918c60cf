package storage

import "github.com/rs/xid"

// NewID returns a fresh entity id. xid ids are globally unique and
// k-ordered, so an id generated later in the same process sorts after
// every earlier one.
func NewID() string {
	return xid.New().String()
}
