// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestTimeTicks(t *testing.T) {
	c := qt.New(t)
	timeService := NewTime(TimeConfiguration{FramesPerSecond: 1000, EventPollDelay: 1})
	defer timeService.Stop()

	c.Assert(timeService.Fps(), qt.Equals, 1000)
	<-timeService.FpsTicker().C
	<-timeService.EventTicker().C
}

func TestTimeUnlimited(t *testing.T) {
	c := qt.New(t)
	timeService := NewTime(TimeConfiguration{})
	defer timeService.Stop()

	c.Assert(timeService.Fps(), qt.Equals, 0)
	<-timeService.FpsTicker().C
}
