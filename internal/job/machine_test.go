package job_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"amequeue/internal/job"
	"amequeue/internal/services/ame"
	"amequeue/internal/testsupport"
)

const driveTimeout = 5 * time.Second

type recorder struct {
	mu       sync.Mutex
	progress []job.Event
	ends     []job.Event
}

func record(j *job.Job) *recorder {
	r := &recorder{}
	j.OnProgress(func(ev job.Event) {
		r.mu.Lock()
		r.progress = append(r.progress, ev)
		r.mu.Unlock()
	})
	j.OnEnd(func(ev job.Event) {
		r.mu.Lock()
		r.ends = append(r.ends, ev)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) snapshot() ([]job.Event, []job.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]job.Event(nil), r.progress...), append([]job.Event(nil), r.ends...)
}

func newJob(gw job.Gateway, clock job.Clock, policy job.Policy) *job.Job {
	return job.New("local-1", ame.Submission{
		SourceFilePath:   "/media/in.mov",
		DestinationPath:  "/media/out.mp4",
		SourcePresetPath: "/presets/h264.epr",
	}, job.Options{Gateway: gw, Clock: clock, Policy: policy})
}

func runToEnd(t *testing.T, j *job.Job, clock *testsupport.ManualClock) {
	t.Helper()
	j.Submit()
	clock.Drive(t, j.Done(), driveTimeout)
	j.Flush()
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(driveTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSuccessfulJobReportsFullProgress(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().
		ScriptSubmits(testsupport.Submitted(ame.SubmitAccepted, "r1")).
		ScriptPolls(
			testsupport.Polled(ame.JobEncoding, 40, "r1"),
			testsupport.Polled(ame.JobEncoding, 70, "r1"),
			testsupport.Polled(ame.JobSuccess, 55, "r1"),
		)
	j := newJob(gw, clock, job.DefaultPolicy())
	rec := record(j)

	runToEnd(t, j, clock)

	if got := j.Lifecycle(); got != job.LifecycleSucceeded {
		t.Fatalf("lifecycle = %s, want Succeeded", got)
	}
	if got := j.Progress(); got != 100 {
		t.Fatalf("progress = %v, want 100", got)
	}
	progress, ends := rec.snapshot()
	if len(ends) != 1 {
		t.Fatalf("expected exactly one end event, got %d", len(ends))
	}
	if !ends[0].Final || ends[0].Lifecycle != job.LifecycleSucceeded {
		t.Fatalf("unexpected end event: %+v", ends[0])
	}
	last := progress[len(progress)-1]
	if last.Progress != 100 || last.JobStatus != ame.JobSuccess {
		t.Fatalf("final progress event = %v %s, want 100 Success", last.Progress, last.JobStatus)
	}
	peak := 0.0
	for _, ev := range progress {
		if ev.JobStatus == ame.JobEncoding && ev.Progress < peak {
			t.Fatalf("progress went backwards: %v after %v", ev.Progress, peak)
		}
		if ev.Progress > peak {
			peak = ev.Progress
		}
	}
}

func TestEncodingProgressNeverDecreases(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().
		ScriptSubmits(testsupport.Submitted(ame.SubmitAccepted, "r1")).
		ScriptPolls(
			testsupport.Polled(ame.JobEncoding, 60, "r1"),
			testsupport.Polled(ame.JobEncoding, 20, "r1"),
			testsupport.Polled(ame.JobFailed, -1, "r1"),
		)
	j := newJob(gw, clock, job.DefaultPolicy())
	rec := record(j)
	runToEnd(t, j, clock)

	progress, _ := rec.snapshot()
	seen := false
	for _, ev := range progress {
		if ev.JobStatus != ame.JobEncoding {
			continue
		}
		if ev.Progress == 60 {
			seen = true
		} else if seen {
			t.Fatalf("progress regressed to %v after reaching 60", ev.Progress)
		}
	}
	if !seen {
		t.Fatal("expected an Encoding(60) event")
	}
	if j.Lifecycle() != job.LifecycleFailed {
		t.Fatalf("lifecycle = %s, want Failed", j.Lifecycle())
	}
	if j.Detail() != "Encoder reports the job as failed" {
		t.Fatalf("unexpected detail %q", j.Detail())
	}
}

func TestIdenticalPollsEmitOnce(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().
		ScriptSubmits(testsupport.Submitted(ame.SubmitAccepted, "r1")).
		ScriptPolls(
			testsupport.Polled(ame.JobEncoding, 50, "r1"),
			testsupport.Polled(ame.JobEncoding, 50, "r1"),
			testsupport.Polled(ame.JobSuccess, 100, "r1"),
		)
	j := newJob(gw, clock, job.DefaultPolicy())
	rec := record(j)
	runToEnd(t, j, clock)

	progress, _ := rec.snapshot()
	count := 0
	for _, ev := range progress {
		if ev.JobStatus == ame.JobEncoding && ev.Progress == 50 {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one progress event for Encoding(50), got %d", count)
	}
}

func TestBadSyntaxFailsWithoutRetry(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().ScriptSubmits(testsupport.Submitted(ame.SubmitBadSyntax, ""))
	j := newJob(gw, clock, job.DefaultPolicy())
	rec := record(j)
	j.Submit()
	j.Submit()
	clock.Drive(t, j.Done(), driveTimeout)
	j.Flush()

	if j.Lifecycle() != job.LifecycleFailed {
		t.Fatalf("lifecycle = %s, want Failed", j.Lifecycle())
	}
	if n := gw.Count("SubmitJob"); n != 1 {
		t.Fatalf("expected a single submit, got %d", n)
	}
	if v := j.View(); v.SubmitRetries != 0 {
		t.Fatalf("expected zero retries, got %d", v.SubmitRetries)
	}
	_, ends := rec.snapshot()
	if len(ends) != 1 {
		t.Fatalf("expected one end event, got %d", len(ends))
	}
	if snap := ends[0].Snapshot; snap == nil || snap.JobStatus != ame.JobFailed {
		t.Fatalf("end event snapshot = %+v, want Failed", snap)
	}
	if j.Detail() != "Encoder rejected the job as bad syntax" {
		t.Fatalf("unexpected detail %q", j.Detail())
	}
}

func TestRejectedExhaustsBoundedRetries(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().ScriptSubmits(testsupport.Submitted(ame.SubmitRejected, ""))
	policy := job.DefaultPolicy()
	j := newJob(gw, clock, policy)
	start := clock.Now()

	runToEnd(t, j, clock)

	if j.Lifecycle() != job.LifecycleFailed {
		t.Fatalf("lifecycle = %s, want Failed", j.Lifecycle())
	}
	if n := gw.Count("SubmitJob"); n != policy.SubmitRetries+1 {
		t.Fatalf("submits = %d, want %d", n, policy.SubmitRetries+1)
	}
	if waited := clock.Now().Sub(start); waited != time.Duration(policy.SubmitRetries)*policy.SubmitRetryDelay {
		t.Fatalf("waited %s, want %s", waited, time.Duration(policy.SubmitRetries)*policy.SubmitRetryDelay)
	}
	if v := j.View(); v.SubmitRetries != policy.SubmitRetries {
		t.Fatalf("retry counter = %d, want %d", v.SubmitRetries, policy.SubmitRetries)
	}
	if !strings.Contains(j.Detail(), "Exceeded submit retry limit") {
		t.Fatalf("unexpected detail %q", j.Detail())
	}
}

func TestRejectedThenAcceptedSucceeds(t *testing.T) {
	clock := testsupport.NewManualClock()
	replies := make([]testsupport.SubmitReply, 0, 11)
	for range 10 {
		replies = append(replies, testsupport.Submitted(ame.SubmitRejected, ""))
	}
	replies = append(replies, testsupport.Submitted(ame.SubmitAccepted, "r9"))
	gw := testsupport.NewFakeGateway().
		ScriptSubmits(replies...).
		ScriptPolls(testsupport.Polled(ame.JobSuccess, 100, "r9"))
	j := newJob(gw, clock, job.DefaultPolicy())

	runToEnd(t, j, clock)

	if j.Lifecycle() != job.LifecycleSucceeded {
		t.Fatalf("lifecycle = %s, want Succeeded", j.Lifecycle())
	}
}

func TestBusyRetriesWithoutConsumingBudget(t *testing.T) {
	clock := testsupport.NewManualClock()
	var submits atomic.Int32
	gw := testsupport.NewFakeGateway().ScriptPolls(testsupport.Polled(ame.JobSuccess, 100, "r2"))
	gw.SubmitFunc = func(context.Context, ame.Submission) (*ame.SubmitStatus, error) {
		n := submits.Add(1)
		switch {
		case n <= 15:
			return testsupport.Submitted(ame.SubmitBusy, "").Status, nil
		case n <= 25:
			return testsupport.Submitted(ame.SubmitNoServer, "").Status, nil
		default:
			return testsupport.Submitted(ame.SubmitAccepted, "r2").Status, nil
		}
	}
	policy := job.DefaultPolicy()
	policy.SubmitRetries = 3
	j := newJob(gw, clock, policy)
	start := clock.Now()

	runToEnd(t, j, clock)

	if j.Lifecycle() != job.LifecycleSucceeded {
		t.Fatalf("lifecycle = %s, want Succeeded", j.Lifecycle())
	}
	if n := submits.Load(); n != 26 {
		t.Fatalf("submits = %d, want 26", n)
	}
	if v := j.View(); v.SubmitRetries != 0 {
		t.Fatalf("busy retries consumed the budget: %d", v.SubmitRetries)
	}
	if waited := clock.Now().Sub(start); waited != 25*policy.SubmitRetryDelay {
		t.Fatalf("waited %s, want %s", waited, 25*policy.SubmitRetryDelay)
	}
}

func TestTransportErrorsShareBoundedRetries(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().ScriptSubmits(
		testsupport.SubmitReply{Err: testsupport.ErrUnavailable},
		testsupport.Submitted(ame.SubmitUnknown, ""),
		testsupport.SubmitReply{Err: testsupport.ErrUnavailable},
	)
	policy := job.DefaultPolicy()
	policy.SubmitRetries = 2
	j := newJob(gw, clock, policy)

	runToEnd(t, j, clock)

	if j.Lifecycle() != job.LifecycleFailed {
		t.Fatalf("lifecycle = %s, want Failed", j.Lifecycle())
	}
	if n := gw.Count("SubmitJob"); n != 3 {
		t.Fatalf("submits = %d, want 3", n)
	}
	snap := j.LastSnapshot()
	if snap == nil || snap.JobStatus != ame.JobFailed {
		t.Fatalf("expected a failed fallback snapshot, got %+v", snap)
	}
}

func TestUnreachableEncoderEndsWithNeverSubmittedSnapshot(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().ScriptSubmits(testsupport.SubmitReply{Err: testsupport.ErrUnavailable})
	policy := job.DefaultPolicy()
	policy.SubmitRetries = 1
	j := newJob(gw, clock, policy)
	rec := record(j)

	runToEnd(t, j, clock)

	if j.Lifecycle() != job.LifecycleFailed {
		t.Fatalf("lifecycle = %s, want Failed", j.Lifecycle())
	}
	_, ends := rec.snapshot()
	if len(ends) != 1 {
		t.Fatalf("expected one end event, got %d", len(ends))
	}
	snap := ends[0].Snapshot
	if snap == nil || snap.JobStatus != ame.JobFailed || snap.Details != "(Job was never submitted to the server)" {
		t.Fatalf("unexpected end snapshot %+v", snap)
	}
	if !strings.Contains(ends[0].Detail, "Exceeded submit retry limit") {
		t.Fatalf("unexpected end detail %q", ends[0].Detail)
	}
}

func TestNotFoundReconcilesFromHistory(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().
		ScriptSubmits(testsupport.Submitted(ame.SubmitAccepted, "r3")).
		ScriptPolls(
			testsupport.Polled(ame.JobEncoding, 30, "r3"),
			testsupport.Polled(ame.JobNotFound, -1, "r3"),
		).
		ScriptHistories(testsupport.History(
			ame.HistoricJob{JobID: "older", JobStatus: ame.JobFailed, Details: "not ours"},
			ame.HistoricJob{JobID: "r3", JobStatus: ame.JobSuccess, JobStatusText: "Success", Details: "Encoded in 42s"},
		))
	j := newJob(gw, clock, job.DefaultPolicy())

	runToEnd(t, j, clock)

	if j.Lifecycle() != job.LifecycleSucceeded {
		t.Fatalf("lifecycle = %s, want Succeeded", j.Lifecycle())
	}
	if j.Detail() != "Encoded in 42s" {
		t.Fatalf("detail = %q, want history detail", j.Detail())
	}
	if j.Progress() != 100 {
		t.Fatalf("progress = %v, want 100", j.Progress())
	}
}

func TestHistoryMissEndsFailed(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().
		ScriptSubmits(testsupport.Submitted(ame.SubmitAccepted, "r4")).
		ScriptPolls(testsupport.Polled(ame.JobNotFound, -1, "r4")).
		ScriptHistories(testsupport.History(ame.HistoricJob{JobID: "other", JobStatus: ame.JobSuccess}))
	j := newJob(gw, clock, job.DefaultPolicy())

	runToEnd(t, j, clock)

	if j.Lifecycle() != job.LifecycleFailed {
		t.Fatalf("lifecycle = %s, want Failed", j.Lifecycle())
	}
	if !strings.Contains(j.Detail(), "not found in the encoder history") {
		t.Fatalf("unexpected detail %q", j.Detail())
	}
}

func TestIdentityDriftReconciles(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().
		ScriptSubmits(testsupport.Submitted(ame.SubmitAccepted, "mine")).
		ScriptPolls(testsupport.Polled(ame.JobEncoding, 10, "someone-else")).
		ScriptHistories(testsupport.History(ame.HistoricJob{JobID: "mine", JobStatus: ame.JobFailed, JobStatusText: "Failed", Details: "Disk full"}))
	j := newJob(gw, clock, job.DefaultPolicy())

	runToEnd(t, j, clock)

	if j.Lifecycle() != job.LifecycleFailed || j.Detail() != "Disk full" {
		t.Fatalf("got %s %q, want Failed \"Disk full\"", j.Lifecycle(), j.Detail())
	}
}

func TestHistoryErrorSynthesizesFailure(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().
		ScriptSubmits(testsupport.Submitted(ame.SubmitAccepted, "r5")).
		ScriptPolls(testsupport.Polled(ame.JobNotFound, -1, "r5")).
		ScriptHistories(testsupport.HistoryReply{Err: errors.New("boom")})
	j := newJob(gw, clock, job.DefaultPolicy())

	runToEnd(t, j, clock)

	snap := j.LastSnapshot()
	if j.Lifecycle() != job.LifecycleFailed || snap == nil || snap.JobStatus != ame.JobFailed {
		t.Fatalf("unexpected outcome %s %+v", j.Lifecycle(), snap)
	}
	if !strings.Contains(snap.Details, "Unable to get job history: boom") {
		t.Fatalf("unexpected snapshot detail %q", snap.Details)
	}
}

func TestStoppedRemoteJobEndsAborted(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().
		ScriptSubmits(testsupport.Submitted(ame.SubmitAccepted, "r6")).
		ScriptPolls(testsupport.Polled(ame.JobStopped, 12, "r6"))
	j := newJob(gw, clock, job.DefaultPolicy())

	runToEnd(t, j, clock)

	if j.Lifecycle() != job.LifecycleAborted {
		t.Fatalf("lifecycle = %s, want Aborted", j.Lifecycle())
	}
}

func TestErrorStateTimeoutFailsJob(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().
		ScriptSubmits(testsupport.Submitted(ame.SubmitAccepted, "r7")).
		ScriptPolls(testsupport.PollReply{Err: testsupport.ErrUnavailable})
	policy := job.DefaultPolicy()
	j := newJob(gw, clock, policy)
	start := clock.Now()

	runToEnd(t, j, clock)

	if j.Lifecycle() != job.LifecycleFailed {
		t.Fatalf("lifecycle = %s, want Failed", j.Lifecycle())
	}
	if !strings.Contains(j.Detail(), "error state") {
		t.Fatalf("unexpected detail %q", j.Detail())
	}
	if gw.Count("JobHistory") != 0 {
		t.Fatal("a synthesized failure should not need the history")
	}
	want := policy.ErrorStateTimeout + policy.PollInterval
	if waited := clock.Now().Sub(start); waited != want {
		t.Fatalf("failed after %s, want %s", waited, want)
	}
}

func TestRecognisedPollClearsErrorState(t *testing.T) {
	clock := testsupport.NewManualClock()
	polls := make([]testsupport.PollReply, 0, 22)
	for range 10 {
		polls = append(polls, testsupport.PollReply{Err: testsupport.ErrUnavailable})
	}
	polls = append(polls, testsupport.Polled(ame.JobEncoding, 50, "r8"))
	for range 10 {
		polls = append(polls, testsupport.Polled(ame.JobUnknown, -1, "r8"))
	}
	polls = append(polls, testsupport.Polled(ame.JobSuccess, 100, "r8"))
	gw := testsupport.NewFakeGateway().
		ScriptSubmits(testsupport.Submitted(ame.SubmitAccepted, "r8")).
		ScriptPolls(polls...)
	j := newJob(gw, clock, job.DefaultPolicy())

	runToEnd(t, j, clock)

	if j.Lifecycle() != job.LifecycleSucceeded {
		t.Fatalf("lifecycle = %s (%s), want Succeeded", j.Lifecycle(), j.Detail())
	}
}

func TestAbortWhileWaiting(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().
		ScriptSubmits(testsupport.Submitted(ame.SubmitAccepted, "r10")).
		ScriptPolls(testsupport.Polled(ame.JobEncoding, 35, "r10"))
	j := newJob(gw, clock, job.DefaultPolicy())
	rec := record(j)

	j.Submit()
	waitUntil(t, func() bool { return j.State() == job.StateWaiting && clock.Pending() > 0 })
	j.Abort()
	j.Abort()
	clock.Drive(t, j.Done(), driveTimeout)
	j.Flush()

	if j.Lifecycle() != job.LifecycleAborted {
		t.Fatalf("lifecycle = %s, want Aborted", j.Lifecycle())
	}
	if n := gw.Count("AbortJob"); n != 1 {
		t.Fatalf("abort calls = %d, want 1", n)
	}
	snap := j.LastSnapshot()
	if snap == nil || snap.JobStatus != ame.JobStopped || snap.Details != "Aborted upon request" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	progress, ends := rec.snapshot()
	if len(ends) != 1 {
		t.Fatalf("expected one end event, got %d", len(ends))
	}
	sawAborting := false
	for _, ev := range progress {
		if ev.Lifecycle == job.LifecycleAborting {
			sawAborting = true
		}
	}
	if !sawAborting {
		t.Fatal("expected a progress event while aborting")
	}
}

func TestAbortRetriesExhaustedFallsBackToHistory(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().
		ScriptSubmits(testsupport.Submitted(ame.SubmitAccepted, "r11")).
		ScriptPolls(testsupport.Polled(ame.JobEncoding, 5, "r11")).
		ScriptAborts(errors.New("refused")).
		ScriptHistories(testsupport.History(ame.HistoricJob{JobID: "r11", JobStatus: ame.JobStopped, JobStatusText: "Stopped", Details: "Stopped by user"}))
	policy := job.DefaultPolicy()
	j := newJob(gw, clock, policy)

	j.Submit()
	waitUntil(t, func() bool { return j.State() == job.StateWaiting && clock.Pending() > 0 })
	j.Abort()
	clock.Drive(t, j.Done(), driveTimeout)

	if n := gw.Count("AbortJob"); n != policy.AbortRetries+1 {
		t.Fatalf("abort calls = %d, want %d", n, policy.AbortRetries+1)
	}
	if j.Lifecycle() != job.LifecycleAborted || j.Detail() != "Stopped by user" {
		t.Fatalf("got %s %q", j.Lifecycle(), j.Detail())
	}
}

func TestAbortWhilePendingEndsWithoutGatewayCalls(t *testing.T) {
	gw := testsupport.NewFakeGateway()
	j := newJob(gw, testsupport.NewManualClock(), job.DefaultPolicy())

	j.Abort()
	select {
	case <-j.Done():
	case <-time.After(driveTimeout):
		t.Fatal("job did not end")
	}
	j.Submit()

	if j.Lifecycle() != job.LifecycleFailed {
		t.Fatalf("lifecycle = %s, want Failed", j.Lifecycle())
	}
	snap := j.LastSnapshot()
	if snap == nil || snap.Details != "(Job was never submitted to the server)" {
		t.Fatalf("unexpected synthetic snapshot %+v", snap)
	}
	if calls := gw.Calls(); len(calls) != 0 {
		t.Fatalf("expected no gateway calls, got %v", calls)
	}

	late := make(chan job.Event, 2)
	j.OnEnd(func(ev job.Event) { late <- ev })
	select {
	case ev := <-late:
		if ev.Lifecycle != job.LifecycleFailed {
			t.Fatalf("late subscriber got %s", ev.Lifecycle)
		}
	case <-time.After(driveTimeout):
		t.Fatal("late end subscriber was not notified")
	}
	j.Flush()
	if len(late) != 0 {
		t.Fatal("late subscriber notified more than once")
	}
}

func TestAbortDuringSubmitWithoutRemoteID(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().ScriptSubmits(testsupport.Submitted(ame.SubmitBusy, ""))
	j := newJob(gw, clock, job.DefaultPolicy())

	j.Submit()
	waitUntil(t, func() bool { return clock.Pending() > 0 })
	j.Abort()
	clock.Drive(t, j.Done(), driveTimeout)

	if j.Lifecycle() != job.LifecycleFailed {
		t.Fatalf("lifecycle = %s, want Failed", j.Lifecycle())
	}
	if gw.Count("AbortJob") != 0 || gw.Count("JobHistory") != 0 {
		t.Fatalf("unexpected calls %v", gw.Calls())
	}
	if j.Detail() != "Aborted before the encoder accepted the job" {
		t.Fatalf("unexpected detail %q", j.Detail())
	}
}

func TestSubmitResponseAfterAbortIsDropped(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway()
	entered := make(chan struct{})
	release := make(chan struct{})
	gw.SubmitFunc = func(context.Context, ame.Submission) (*ame.SubmitStatus, error) {
		close(entered)
		<-release
		return testsupport.Submitted(ame.SubmitAccepted, "r20").Status, nil
	}
	j := newJob(gw, clock, job.DefaultPolicy())

	j.Submit()
	<-entered
	j.Abort()
	clock.Drive(t, j.Done(), driveTimeout)
	close(release)
	time.Sleep(20 * time.Millisecond)

	if j.State() != job.StateEnded || j.Lifecycle() != job.LifecycleFailed {
		t.Fatalf("got %s/%s, want Ended/Failed", j.State(), j.Lifecycle())
	}
	if n := gw.Count("JobStatus"); n != 0 {
		t.Fatalf("late accept started polling: %d status calls", n)
	}
	if j.Detail() != "Aborted before the encoder accepted the job" {
		t.Fatalf("unexpected detail %q", j.Detail())
	}
}

func TestPollResponseAfterAbortIsDropped(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().ScriptSubmits(testsupport.Submitted(ame.SubmitAccepted, "r21"))
	entered := make(chan struct{})
	release := make(chan struct{})
	var polls atomic.Int32
	gw.StatusFunc = func(context.Context) (*ame.JobStatusSnapshot, error) {
		if polls.Add(1) == 1 {
			close(entered)
			<-release
			return testsupport.Polled(ame.JobSuccess, 100, "r21").Snapshot, nil
		}
		return testsupport.Polled(ame.JobEncoding, 40, "r21").Snapshot, nil
	}
	j := newJob(gw, clock, job.DefaultPolicy())

	j.Submit()
	<-entered
	j.Abort()
	waitUntil(t, func() bool { return gw.Count("JobStatus") >= 2 })
	close(release)
	clock.Drive(t, j.Done(), driveTimeout)
	j.Flush()

	if j.Lifecycle() != job.LifecycleAborted {
		t.Fatalf("lifecycle = %s, want Aborted", j.Lifecycle())
	}
	if n := gw.Count("AbortJob"); n != 1 {
		t.Fatalf("abort calls = %d, want 1", n)
	}
}

func TestAbortWithDifferentCurrentJobReconciles(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().
		ScriptSubmits(testsupport.Submitted(ame.SubmitAccepted, "r22")).
		ScriptPolls(
			testsupport.Polled(ame.JobEncoding, 20, "r22"),
			testsupport.Polled(ame.JobEncoding, 5, "someone-else"),
		).
		ScriptHistories(testsupport.History(ame.HistoricJob{JobID: "r22", JobStatus: ame.JobStopped, JobStatusText: "Stopped", Details: "Stopped by operator"}))
	j := newJob(gw, clock, job.DefaultPolicy())

	j.Submit()
	waitUntil(t, func() bool { return j.State() == job.StateWaiting && clock.Pending() > 0 })
	j.Abort()
	clock.Drive(t, j.Done(), driveTimeout)

	if gw.Count("AbortJob") != 0 {
		t.Fatalf("aborted someone else's job: %v", gw.Calls())
	}
	if gw.Count("JobHistory") != 1 {
		t.Fatalf("history calls = %d, want 1", gw.Count("JobHistory"))
	}
	if j.Lifecycle() != job.LifecycleAborted || j.Detail() != "Stopped by operator" {
		t.Fatalf("got %s %q", j.Lifecycle(), j.Detail())
	}
}

func TestObserverPanicIsContained(t *testing.T) {
	clock := testsupport.NewManualClock()
	gw := testsupport.NewFakeGateway().
		ScriptSubmits(testsupport.Submitted(ame.SubmitAccepted, "r12")).
		ScriptPolls(testsupport.Polled(ame.JobSuccess, 100, "r12"))
	j := newJob(gw, clock, job.DefaultPolicy())
	j.OnProgress(func(job.Event) { panic("observer bug") })
	rec := record(j)

	runToEnd(t, j, clock)

	progress, ends := rec.snapshot()
	if len(progress) == 0 || len(ends) != 1 {
		t.Fatalf("healthy observers starved: %d progress, %d end", len(progress), len(ends))
	}
}
