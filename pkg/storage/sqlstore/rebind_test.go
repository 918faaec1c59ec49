package sqlstore

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("rebind", func() {
	It("leaves sqlite placeholders alone", func() {
		s := &Store{dialect: SQLite}
		Expect(s.rebind("SELECT 1 WHERE a = ? AND b = ?")).To(Equal("SELECT 1 WHERE a = ? AND b = ?"))
	})

	It("numbers postgres placeholders", func() {
		s := &Store{dialect: Postgres}
		Expect(s.rebind("UPDATE t SET a = ?, b = ? WHERE id = ?")).To(Equal("UPDATE t SET a = $1, b = $2 WHERE id = $3"))
	})
})
