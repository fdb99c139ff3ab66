package session

import (
	"github.com/mcdev12/draftcoord/go/internal/draft/optimistic"
)

// msg is anything the controller loop processes.
type msg interface{ isMsg() }

type applyResult struct {
	actionID string
	err      error
}

// applyMsg runs a local projection and, when accepted, submits it.
type applyMsg struct {
	apply func(*optimistic.Engine) (string, error)
	reply chan applyResult
}

type retryMsg struct {
	actionID string
	reply    chan error
}

type stateMsg struct {
	reply chan optimistic.View
}

// settleMsg carries the outcome of a submitted action.
type settleMsg struct {
	actionID string
	attempt  int
	err      error
}

// stallMsg fires when an action has waited longer than the RPC timeout.
type stallMsg struct {
	actionID string
	attempt  int
}

type refreshMsg struct{}

// snapshotMsg carries the result of a pull refresh. since is the number of
// pushed changes applied when the refresh was requested.
type snapshotMsg struct {
	snapshot optimistic.Snapshot
	since    uint64
	err      error
}

func (applyMsg) isMsg()    {}
func (retryMsg) isMsg()    {}
func (stateMsg) isMsg()    {}
func (settleMsg) isMsg()   {}
func (stallMsg) isMsg()    {}
func (refreshMsg) isMsg()  {}
func (snapshotMsg) isMsg() {}
