package auth

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerateToken(t *testing.T) {
	Convey("Given an auth service", t, func() {
		svc := NewService("test-secret")
		token, expiresAt, err := svc.GenerateToken("alice")

		Convey("Then a token is returned", func() {
			So(err, ShouldBeNil)
			So(token, ShouldNotBeEmpty)
			So(expiresAt, ShouldHappenAfter, time.Now())
		})

		Convey("Then the token verifies back to the user", func() {
			username, err := svc.VerifyToken(token)
			So(err, ShouldBeNil)
			So(username, ShouldEqual, "alice")
		})
	})
}

func TestVerifyToken(t *testing.T) {
	Convey("Given a token signed with a different key", t, func() {
		issuer := NewService("secret-a")
		verifier := NewService("secret-b")
		token, _, _ := issuer.GenerateToken("alice")

		Convey("Then verification fails", func() {
			_, err := verifier.VerifyToken(token)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a garbage token", t, func() {
		svc := NewService("test-secret")

		Convey("Then verification fails", func() {
			_, err := svc.VerifyToken("not.a.token")
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given an expired token", t, func() {
		svc := NewService("test-secret", WithTokenTTL(time.Nanosecond))
		token, _, _ := svc.GenerateToken("alice")
		time.Sleep(10 * time.Millisecond)

		Convey("Then verification fails", func() {
			_, err := svc.VerifyToken(token)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestPasswordHashing(t *testing.T) {
	Convey("Given a hashed password", t, func() {
		hash, err := HashPassword("hunter2")
		So(err, ShouldBeNil)
		So(hash, ShouldNotEqual, "hunter2")

		Convey("Then the right password verifies", func() {
			So(VerifyPassword(hash, "hunter2"), ShouldBeNil)
		})

		Convey("Then a wrong password does not", func() {
			So(VerifyPassword(hash, "hunter3"), ShouldNotBeNil)
		})
	})
}
