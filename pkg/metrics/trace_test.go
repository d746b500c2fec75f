package metrics

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewTrace(t *testing.T) {
	Convey("When creating a new trace", t, func() {
		tr := NewTrace()
		Convey("Then it should be empty", func() {
			So(tr, ShouldNotBeNil)
			So(tr.Stages(), ShouldBeEmpty)
		})
	})
}

func TestRecord(t *testing.T) {
	Convey("Given a trace", t, func() {
		tr := NewTrace()
		tr.Record("load", 5*time.Millisecond, "truncated to 100 bytes")
		Convey("Then the stage is recorded", func() {
			stages := tr.Stages()
			So(stages, ShouldHaveLength, 1)
			So(stages[0].Name, ShouldEqual, "load")
			So(stages[0].Note, ShouldEqual, "truncated to 100 bytes")
		})
	})
}

func TestStart(t *testing.T) {
	Convey("Given a started stage", t, func() {
		tr := NewTrace()
		done := tr.Start("dispatch")
		done()
		Convey("Then it is recorded with a duration", func() {
			stages := tr.Stages()
			So(stages, ShouldHaveLength, 1)
			So(stages[0].Name, ShouldEqual, "dispatch")
			So(stages[0].Duration, ShouldBeGreaterThanOrEqualTo, 0)
		})
	})
}

func TestStagesSnapshot(t *testing.T) {
	Convey("Given a trace with stages", t, func() {
		tr := NewTrace()
		tr.Record("a", time.Millisecond, "")
		snapshot := tr.Stages()
		tr.Record("b", time.Millisecond, "")
		Convey("Then earlier snapshots are unaffected by later records", func() {
			So(snapshot, ShouldHaveLength, 1)
			So(tr.Stages(), ShouldHaveLength, 2)
		})
	})
}
