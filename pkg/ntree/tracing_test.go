package ntree_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/cienislaw/thirtybees/pkg/ntree"
	testutils "github.com/cienislaw/thirtybees/pkg/utils/test"
)

var _ = Describe("tracing", func() {
	var (
		ctx context.Context
		rec *tracetest.SpanRecorder
		c   *testutils.Catalog
	)

	BeforeEach(func() {
		ctx = context.Background()
		rec = tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
		DeferCleanup(func() {
			Expect(tp.Shutdown(context.Background())).To(Succeed())
		})

		var err error
		c, err = testutils.NewCatalog(ctx, ntree.WithTracer(tp.Tracer("ntree-test")))
		Expect(err).NotTo(HaveOccurred())
	})

	spanNames := func() []string {
		var names []string
		for _, s := range rec.Ended() {
			names = append(names, s.Name())
		}
		return names
	}

	It("nests the interval rebuild under the mutation span", func() {
		before := len(rec.Ended())
		_, err := c.Tree.Create(ctx, ntree.CreateRequest{ParentID: c.Home, Name: "Socks"})
		Expect(err).NotTo(HaveOccurred())

		ended := rec.Ended()[before:]
		Expect(ended).To(HaveLen(2))
		build, create := ended[0], ended[1]
		Expect(build.Name()).To(Equal("ntree.build_intervals"))
		Expect(create.Name()).To(Equal("ntree.create"))
		Expect(build.Parent().SpanID()).To(Equal(create.SpanContext().SpanID()))
	})

	It("records rejected mutations as errors", func() {
		_, err := c.Tree.Delete(ctx, c.Home)
		Expect(err).To(HaveOccurred())

		ended := rec.Ended()
		last := ended[len(ended)-1]
		Expect(last.Name()).To(Equal("ntree.delete"))
		Expect(last.Status().Code).To(Equal(codes.Error))
		Expect(last.Events()).NotTo(BeEmpty())
	})

	It("traces forced rebuilds", func() {
		Expect(c.Tree.ForceRebuild(ctx)).To(Succeed())
		Expect(spanNames()).To(ContainElements("ntree.rebuild", "ntree.build_intervals"))
	})
})
