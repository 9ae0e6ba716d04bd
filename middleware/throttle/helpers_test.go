package throttle

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"merchant-update-gate/middleware/throttle/application"
	"merchant-update-gate/middleware/throttle/infra"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// testClock permite avançar o relógio do gate entre requisições.
type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGate() (*application.Gate, *infra.MemoryStorage, *testClock) {
	clock := &testClock{now: time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)}
	st := infra.NewMemoryStorage()
	return &application.Gate{Storage: st, Now: clock.Now, Logger: quietLogger()}, st, clock
}
