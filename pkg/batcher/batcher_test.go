package batcher_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cienislaw/thirtybees/pkg/batcher"
	"github.com/cienislaw/thirtybees/pkg/logger"
	"github.com/cienislaw/thirtybees/pkg/ntree"
	testutils "github.com/cienislaw/thirtybees/pkg/utils/test"
)

type changeLog struct {
	mu      sync.Mutex
	changes []ntree.Change
}

func (l *changeLog) hook(_ context.Context, c ntree.Change) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
}

func (l *changeLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.changes)
}

func (l *changeLog) last() ntree.Change {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.changes[len(l.changes)-1]
}

// blocker returns a job that holds the worker until release is closed.
func blocker(started chan<- struct{}, release <-chan struct{}) batcher.Job {
	return batcher.Job{
		Name: "blocker",
		Apply: func(_ context.Context, _ *ntree.Batch) error {
			close(started)
			<-release
			return nil
		},
	}
}

func create(parent ntree.NodeID, name string, done func(error)) batcher.Job {
	return batcher.Job{
		Name: "create " + name,
		Apply: func(ctx context.Context, b *ntree.Batch) error {
			_, err := b.Create(ctx, ntree.CreateRequest{ParentID: parent, Name: name})
			return err
		},
		Done: done,
	}
}

var _ = Describe("Batcher", func() {
	var (
		ctx context.Context
		c   *testutils.Catalog
		log *changeLog
		b   *batcher.Batcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		log = &changeLog{}

		var err error
		c, err = testutils.NewCatalog(ctx, ntree.WithChangeHook(log.hook))
		Expect(err).NotTo(HaveOccurred())

		b, err = batcher.New(&batcher.Config{Tree: c.Tree, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		b.Close()
	})

	It("requires a tree", func() {
		_, err := batcher.New(&batcher.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("applies submitted jobs and reports their outcome", func() {
		var node *ntree.Node
		err := b.Submit(ctx, "create", func(ctx context.Context, batch *ntree.Batch) error {
			var err error
			node, err = batch.Create(ctx, ntree.CreateRequest{ParentID: c.Home, Name: "Socks"})
			return err
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Tree.IsDescendantOf(node.ID, c.Home)).To(BeTrue())

		err = b.Submit(ctx, "cycle", func(ctx context.Context, batch *ntree.Batch) error {
			return batch.Reparent(ctx, c.Shoes, c.Boots)
		})
		var cycle *ntree.CycleError
		Expect(errors.As(err, &cycle)).To(BeTrue())
	})

	It("labels changes with the operation of the submitted job", func() {
		err := b.Submit(ctx, "delete", func(ctx context.Context, batch *ntree.Batch) error {
			_, err := batch.Delete(ctx, c.Boots)
			return err
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(log.last().Op).To(Equal(ntree.OpDelete))
		Expect(log.last().NodeIDs).To(Equal([]ntree.NodeID{c.Boots}))

		err = b.Submit(ctx, "create", func(ctx context.Context, batch *ntree.Batch) error {
			_, err := batch.Create(ctx, ntree.CreateRequest{ParentID: c.Home, Name: "Socks"})
			return err
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(log.last().Op).To(Equal(ntree.OpCreate))
	})

	It("labels a coalesced batch of one kind with that kind", func() {
		started, release := make(chan struct{}), make(chan struct{})
		Expect(b.Enqueue(blocker(started, release))).To(BeTrue())
		Eventually(started).Should(BeClosed())

		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			Expect(b.Enqueue(create(c.Hats, "item", func(error) { wg.Done() }))).To(BeTrue())
		}
		close(release)
		wg.Wait()

		Expect(log.last().NodeIDs).To(HaveLen(3))
		Expect(log.last().Op).To(Equal(ntree.OpCreate))
	})

	It("coalesces queued jobs into one rebuild", func() {
		started, release := make(chan struct{}), make(chan struct{})
		Expect(b.Enqueue(blocker(started, release))).To(BeTrue())
		Eventually(started).Should(BeClosed())

		before := log.len()
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			Expect(b.Enqueue(create(c.Hats, "item", func(err error) {
				defer GinkgoRecover()
				defer wg.Done()
				Expect(err).NotTo(HaveOccurred())
			}))).To(BeTrue())
		}
		close(release)
		wg.Wait()

		// the blocker's own batch plus one batch for the ten creates
		Expect(log.len()).To(Equal(before + 2))
		Expect(log.last().NodeIDs).To(HaveLen(10))
		Expect(log.last().Rebuilt).To(BeTrue())
		Expect(c.Tree.Snapshot().Len()).To(Equal(15))
	})

	It("retries alone when one job in a batch is rejected", func() {
		started, release := make(chan struct{}), make(chan struct{})
		Expect(b.Enqueue(blocker(started, release))).To(BeTrue())
		Eventually(started).Should(BeClosed())

		var (
			mu      sync.Mutex
			results = map[string]error{}
			wg      sync.WaitGroup
		)
		record := func(name string) func(error) {
			wg.Add(1)
			return func(err error) {
				mu.Lock()
				defer mu.Unlock()
				results[name] = err
				wg.Done()
			}
		}

		Expect(b.Enqueue(create(c.Home, "first", record("first")))).To(BeTrue())
		Expect(b.Enqueue(batcher.Job{
			Name: "cycle",
			Apply: func(ctx context.Context, batch *ntree.Batch) error {
				return batch.Reparent(ctx, c.Shoes, c.Boots)
			},
			Done: record("cycle"),
		})).To(BeTrue())
		Expect(b.Enqueue(create(c.Home, "second", record("second")))).To(BeTrue())

		close(release)
		wg.Wait()

		Expect(results["first"]).NotTo(HaveOccurred())
		Expect(results["second"]).NotTo(HaveOccurred())
		var cycle *ntree.CycleError
		Expect(errors.As(results["cycle"], &cycle)).To(BeTrue())
		Expect(c.Tree.Snapshot().Len()).To(Equal(7))
		Expect(c.Tree.Check(ctx)).To(Succeed())
	})

	It("skips jobs whose caller has gone away", func() {
		started, release := make(chan struct{}), make(chan struct{})
		Expect(b.Enqueue(blocker(started, release))).To(BeTrue())
		Eventually(started).Should(BeClosed())

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := b.Submit(cancelled, "late", func(ctx context.Context, batch *ntree.Batch) error {
			_, err := batch.Create(ctx, ntree.CreateRequest{ParentID: c.Home, Name: "late"})
			return err
		})
		Expect(err).To(MatchError(context.Canceled))

		outcome := make(chan error, 1)
		job := create(c.Home, "withdrawn", func(err error) { outcome <- err })
		job.Ctx = cancelled
		Expect(b.Enqueue(job)).To(BeTrue())
		Expect(b.Enqueue(create(c.Home, "kept", nil))).To(BeTrue())

		close(release)
		Eventually(outcome).Should(Receive(MatchError(context.Canceled)))
		b.Close()

		Expect(c.Tree.FindByName(c.Home, "late")).To(BeEmpty())
		Expect(c.Tree.FindByName(c.Home, "withdrawn")).To(BeEmpty())
		Expect(c.Tree.FindByName(c.Home, "kept")).To(HaveLen(1))
	})

	It("drops jobs when the queue is full", func() {
		small, err := batcher.New(&batcher.Config{Tree: c.Tree, QueueSize: 1})
		Expect(err).NotTo(HaveOccurred())

		started, release := make(chan struct{}), make(chan struct{})
		Expect(small.Enqueue(blocker(started, release))).To(BeTrue())
		Eventually(started).Should(BeClosed())

		Expect(small.Enqueue(create(c.Home, "a", nil))).To(BeTrue())
		Expect(small.Enqueue(create(c.Home, "b", nil))).To(BeFalse())

		close(release)
		small.Close()
		Expect(c.Tree.FindByName(c.Home, "a")).To(HaveLen(1))
		Expect(c.Tree.FindByName(c.Home, "b")).To(BeEmpty())
	})

	It("drains queued jobs on Close and refuses new ones", func() {
		for i := 0; i < 20; i++ {
			Expect(b.Enqueue(create(c.Home, "item", nil))).To(BeTrue())
		}
		b.Close()
		Expect(c.Tree.FindByName(c.Home, "item")).To(HaveLen(20))

		Expect(b.Enqueue(create(c.Home, "late", nil))).To(BeFalse())
		err := b.Submit(ctx, "late", func(context.Context, *ntree.Batch) error { return nil })
		Expect(err).To(MatchError(batcher.ErrClosed))
	})

	It("stops waiting when the context is cancelled", func() {
		started, release := make(chan struct{}), make(chan struct{})
		Expect(b.Enqueue(blocker(started, release))).To(BeTrue())
		Eventually(started).Should(BeClosed())
		defer close(release)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := b.Submit(cctx, "waiting", func(context.Context, *ntree.Batch) error { return nil })
		Expect(err).To(MatchError(context.Canceled))
	})
})
