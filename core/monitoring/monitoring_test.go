package monitoring

import (
	"errors"
	"testing"
	"time"
)

type recordMonitor struct {
	errs   []error
	tags   []map[string]string
	panics []any
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}
func (r *recordMonitor) CapturePanic(v any)  { r.panics = append(r.panics, v) }
func (r *recordMonitor) Flush(time.Duration) {}

func TestCaptureExceptionSkipsNil(t *testing.T) {
	rm := &recordMonitor{}
	old := Current()
	Init(rm)
	defer Init(old)

	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"module": "test"})
	if len(rm.errs) != 1 || rm.tags[0]["module"] != "test" {
		t.Fatalf("unexpected captures %+v", rm.errs)
	}
}

func TestRecoverReportsAndRepanics(t *testing.T) {
	rm := &recordMonitor{}
	old := Current()
	Init(rm)
	defer Init(old)

	defer func() {
		if r := recover(); r != "kaboom" {
			t.Fatalf("panic not re-raised, got %v", r)
		}
		if len(rm.panics) != 1 {
			t.Fatalf("panic not captured")
		}
	}()
	func() {
		defer Recover()
		panic("kaboom")
	}()
}

func TestInitIgnoresNil(t *testing.T) {
	old := Current()
	Init(nil)
	if Current() != old {
		t.Fatalf("nil monitor replaced the current one")
	}
}
