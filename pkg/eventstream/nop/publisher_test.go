package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cienislaw/thirtybees/pkg/eventstream"
	"github.com/cienislaw/thirtybees/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	It("creates a non-nil publisher", func() {
		p := nop.NewPublisher()
		Expect(p).NotTo(BeNil())
	})

	It("returns ErrNilTreeEvent for nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishTreeChange(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilTreeEvent))
	})

	It("succeeds for non-nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishTreeChange(context.Background(), &eventstream.TreeChangedEvent{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("closes successfully", func() {
		p := nop.NewPublisher()
		Expect(p.Close()).To(Succeed())
	})
})
