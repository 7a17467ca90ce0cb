package worker

import (
	"context"
	"fmt"
	"sync"
)

// recordingLog collects lifecycle events from recording operators. Tests
// use it to assert bundle ordering.
var recordingLog = struct {
	mu      sync.Mutex
	entries []string
}{}

// ResetRecordingLog clears the shared recording log.
func ResetRecordingLog() {
	recordingLog.mu.Lock()
	defer recordingLog.mu.Unlock()
	recordingLog.entries = nil
}

// RecordingLog returns a copy of the shared recording log.
func RecordingLog() []string {
	recordingLog.mu.Lock()
	defer recordingLog.mu.Unlock()
	return append([]string(nil), recordingLog.entries...)
}

func record(entry string) {
	recordingLog.mu.Lock()
	defer recordingLog.mu.Unlock()
	recordingLog.entries = append(recordingLog.entries, entry)
}

// recordingOperator logs every lifecycle call under its transform id and
// forwards elements unchanged. It exists for instrumentation and ordering
// tests.
type recordingOperator struct {
	id  string
	out *Receiver
}

func newRecordingOperator(opCtx *OperatorContext) (Operator, error) {
	return &recordingOperator{id: opCtx.TransformID, out: opCtx.Out}, nil
}

func (o *recordingOperator) StartBundle(context.Context) error {
	record(fmt.Sprintf("%s.start_bundle()", o.id))
	return nil
}

func (o *recordingOperator) Process(ctx context.Context, element interface{}) error {
	record(fmt.Sprintf("%s.process(%s)", o.id, formatElement(element)))
	return o.out.Receive(ctx, element)
}

func (o *recordingOperator) FinishBundle(context.Context) error {
	record(fmt.Sprintf("%s.finish_bundle()", o.id))
	return nil
}

func formatElement(element interface{}) string {
	if s, ok := element.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", element)
}
