package job

import "amequeue/internal/services/ame"

type eventKind int

const (
	evSubmit eventKind = iota + 1
	evSubmitResponse
	evAccepted
	evRejected
	evFailed
	evAbort
	evPoll
	evPollResponse
	evAbortStatusResponse
	evAbortResponse
	evEnd
	evReconcile
	evHistoryResponse
)

var eventNames = map[eventKind]string{
	evSubmit:              "submit",
	evSubmitResponse:      "submitResponse",
	evAccepted:            "accepted",
	evRejected:            "rejected",
	evFailed:              "failed",
	evAbort:               "abort",
	evPoll:                "poll",
	evPollResponse:        "pollResponse",
	evAbortStatusResponse: "abortStatusResponse",
	evAbortResponse:       "abortResponse",
	evEnd:                 "end",
	evReconcile:           "reconcile",
	evHistoryResponse:     "historyResponse",
}

func (k eventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// event is a machine input. Events posted by timers and gateway calls carry
// the entry epoch that issued them; raised and caller events carry zero.
type event struct {
	kind     eventKind
	epoch    uint64
	submit   *ame.SubmitStatus
	snapshot *ame.JobStatusSnapshot
	history  *ame.JobHistory
	err      error
}

type transitionKey struct {
	state State
	kind  eventKind
}

// transition names the next state. enter runs the target's entry handler,
// even when the target equals the current state; otherwise the event is
// evaluated in place.
type transition struct {
	to    State
	enter bool
}

// transitions lists every legal (state, event) pair. Anything else is
// logged and dropped.
var transitions = map[transitionKey]transition{
	{StatePending, evSubmit}: {StateSubmitting, true},
	{StatePending, evAbort}:  {StateEnded, true},

	{StateSubmitting, evSubmit}:         {StateSubmitting, true},
	{StateSubmitting, evSubmitResponse}: {StateSubmitting, false},
	{StateSubmitting, evAccepted}:       {StateWaiting, true},
	{StateSubmitting, evRejected}:       {StateEnded, true},
	{StateSubmitting, evFailed}:         {StateEnded, true},
	{StateSubmitting, evAbort}:          {StateAborting, true},

	{StateWaiting, evPoll}:         {StateWaiting, true},
	{StateWaiting, evPollResponse}: {StateWaiting, false},
	{StateWaiting, evAbort}:        {StateAborting, true},
	{StateWaiting, evEnd}:          {StateEnded, true},
	{StateWaiting, evReconcile}:    {StateReconcilingHistory, true},

	{StateAborting, evAbort}:               {StateAborting, true},
	{StateAborting, evAbortStatusResponse}: {StateAborting, false},
	{StateAborting, evAbortResponse}:       {StateAborting, false},
	{StateAborting, evEnd}:                 {StateEnded, true},
	{StateAborting, evReconcile}:           {StateReconcilingHistory, true},

	{StateReconcilingHistory, evHistoryResponse}: {StateReconcilingHistory, false},
	{StateReconcilingHistory, evEnd}:             {StateEnded, true},
	{StateReconcilingHistory, evAbort}:           {StateEnded, true},
}

func lookupTransition(state State, kind eventKind) (transition, bool) {
	tr, ok := transitions[transitionKey{state: state, kind: kind}]
	return tr, ok
}
