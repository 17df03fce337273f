package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallRequest asks the bridge to originate a call. It is treated as immutable.
type CallRequest struct {
	ID        uuid.UUID
	Handle    *Handle
	Extras    map[string]string
	CreatedAt time.Time
}

// NewCallRequest builds a request with a fresh id. A nil handle is allowed and
// is rejected later during origination.
func NewCallRequest(handle *Handle, extras map[string]string) *CallRequest {
	return &CallRequest{
		ID:        uuid.New(),
		Handle:    handle,
		Extras:    extras,
		CreatedAt: time.Now().UTC(),
	}
}

func (r *CallRequest) String() string {
	if r == nil {
		return "CallRequest(nil)"
	}
	return "CallRequest(" + r.ID.String() + " " + r.Handle.String() + ")"
}

// Subscription is the opaque token returned by discovery when a handle can be called.
type Subscription struct {
	ID     uuid.UUID `json:"id"`
	Family string    `json:"family"`
}
