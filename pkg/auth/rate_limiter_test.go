package auth

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewRateLimiter(t *testing.T) {
	Convey("When creating a rate limiter", t, func() {
		rl := NewRateLimiter(2, time.Second)
		Convey("Then it initializes correctly", func() {
			So(rl, ShouldNotBeNil)
		})
	})
}

func TestRateLimiterAllow(t *testing.T) {
	Convey("Given a limiter with capacity 2", t, func() {
		rl := NewRateLimiter(2, time.Second)
		ok1 := rl.Allow("alice")
		ok2 := rl.Allow("alice")
		ok3 := rl.Allow("alice")
		Convey("Then the third call should be limited", func() {
			So(ok1, ShouldBeTrue)
			So(ok2, ShouldBeTrue)
			So(ok3, ShouldBeFalse)
		})
		time.Sleep(time.Second)
		Convey("And after waiting it allows again", func() {
			So(rl.Allow("alice"), ShouldBeTrue)
		})
	})
}

func TestRateLimiterKeyedBuckets(t *testing.T) {
	Convey("Given two users sharing a limiter", t, func() {
		rl := NewRateLimiter(1, time.Minute)
		So(rl.Allow("alice"), ShouldBeTrue)
		So(rl.Allow("alice"), ShouldBeFalse)

		Convey("Then the other user keeps their own allowance", func() {
			So(rl.Allow("bob"), ShouldBeTrue)
		})

		Convey("And the drained user reports a positive wait", func() {
			So(rl.WaitTime("alice"), ShouldBeGreaterThan, 0)
			So(rl.WaitTime("bob"), ShouldEqual, 0)
		})

		Convey("And Reset refills everyone", func() {
			rl.Reset()
			So(rl.Allow("alice"), ShouldBeTrue)
		})
	})
}
