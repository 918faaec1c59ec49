package feed_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cienislaw/thirtybees/pkg/eventstream"
	"github.com/cienislaw/thirtybees/pkg/eventstream/feed"
	"github.com/cienislaw/thirtybees/pkg/ntree"
	testutils "github.com/cienislaw/thirtybees/pkg/utils/test"
)

func event(op ntree.Op) *eventstream.TreeChangedEvent {
	return eventstream.NewTreeChangedEvent(eventstream.EventSource{}, ntree.Change{Op: op})
}

var _ = Describe("Feed", func() {
	var (
		ctx context.Context
		f   *feed.Feed
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = feed.New(2)
	})

	It("rejects nil events", func() {
		Expect(f.PublishTreeChange(ctx, nil)).To(MatchError(eventstream.ErrNilTreeEvent))
	})

	It("delivers every event to every subscriber", func() {
		a, cancelA := f.Subscribe()
		defer cancelA()
		b, cancelB := f.Subscribe()
		defer cancelB()
		Expect(f.Subscribers()).To(Equal(2))

		e := event(ntree.OpCreate)
		Expect(f.PublishTreeChange(ctx, e)).To(Succeed())

		Expect(<-a).To(BeIdenticalTo(e))
		Expect(<-b).To(BeIdenticalTo(e))
	})

	It("drops events for a full subscriber without blocking", func() {
		ch, cancel := f.Subscribe()
		defer cancel()

		for range 3 {
			Expect(f.PublishTreeChange(ctx, event(ntree.OpDelete))).To(Succeed())
		}
		Expect(ch).To(HaveLen(2))
		Expect(f.Dropped()).To(Equal(uint64(1)))
	})

	It("closes the channel on cancel", func() {
		ch, cancel := f.Subscribe()
		cancel()
		cancel()

		Expect(f.Subscribers()).To(BeZero())
		Eventually(ch).Should(BeClosed())
	})

	It("closes all subscribers on Close", func() {
		ch, cancel := f.Subscribe()
		Expect(f.Close()).To(Succeed())
		Expect(f.Close()).To(Succeed())
		cancel()

		Eventually(ch).Should(BeClosed())
		Expect(f.PublishTreeChange(ctx, event(ntree.OpCreate))).To(Succeed())

		late, _ := f.Subscribe()
		Eventually(late).Should(BeClosed())
	})

	It("receives committed tree mutations through the hook", func() {
		ch, cancel := f.Subscribe()
		defer cancel()

		c, err := testutils.NewCatalog(ctx,
			ntree.WithChangeHook(eventstream.Hook(feed.New(0), eventstream.EventSource{}, nil)),
			ntree.WithChangeHook(eventstream.Hook(f, eventstream.EventSource{Instance: "feed"}, nil)),
		)
		Expect(err).NotTo(HaveOccurred())

		// Buffer of two: bootstrap and the first create.
		Expect((<-ch).Change.Op).To(Equal("bootstrap"))
		Expect((<-ch).Change.Op).To(Equal("create"))

		Expect(c.Tree.Reparent(ctx, c.Hats, c.Shoes)).To(Succeed())
		got := <-ch
		Expect(got.Change.Op).To(Equal("reparent"))
		Expect(got.Source.Instance).To(Equal("feed"))
	})
})
