package redemption_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/pulse/internal/redemption"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestDebouncer(t *testing.T) {
	clock := &manualClock{now: scanTime}
	d := redemption.NewDebouncer(redemption.DefaultCooldown, clock.Now)

	assert.True(t, d.Allow("A"))
	assert.False(t, d.Allow("A"), "immediate repeat")

	clock.Advance(time.Second)
	assert.False(t, d.Allow("A"), "repeat within cooldown")

	clock.Advance(600 * time.Millisecond)
	assert.True(t, d.Allow("A"), "cooldown measured from the last accepted read")

	assert.True(t, d.Allow("B"), "different payload")
	assert.True(t, d.Allow("A"), "only the immediately preceding payload is suppressed")
}

func TestWorkflow_Feed(t *testing.T) {
	f := newFixture(t)
	ticket := f.ticket(nil)
	w := f.workflow()

	clock := &manualClock{now: scanTime}
	codes := make(chan string, 4)
	codes <- *ticket.ScanCode
	codes <- *ticket.ScanCode
	codes <- *ticket.ScanCode
	close(codes)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var results []redemption.Result
	for result := range w.Feed(ctx, codes, redemption.NewDebouncer(0, clock.Now)) {
		results = append(results, result)
	}

	require.Len(t, results, 1)
	assert.Equal(t, redemption.OutcomeRedeemed, results[0].Outcome)
	assert.Equal(t, 1, f.fake.Calls("FindTicketByScanCode"))
}
