package audit_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/frahmantamala/payroll-engine/internal/audit"
)

func TestAudit(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Audit Suite")
}

var _ = Describe("Changes", func() {
	It("serializes a nil change set as an empty JSON object", func() {
		value, err := audit.Changes(nil).Value()
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("{}"))
	})

	It("round-trips a populated change set", func() {
		original := audit.Changes{"status": "APPROVED", "approved_by": float64(10)}

		value, err := original.Value()
		Expect(err).NotTo(HaveOccurred())

		var decoded audit.Changes
		Expect(decoded.Scan(value)).To(Succeed())
		Expect(decoded).To(Equal(original))
	})

	It("scans a NULL column to a nil map", func() {
		decoded := audit.Changes{"stale": true}
		Expect(decoded.Scan(nil)).To(Succeed())
		Expect(decoded).To(BeNil())
	})
})

var _ = Describe("Log", func() {
	var db *gorm.DB

	BeforeEach(func() {
		var err error

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&audit.Log{})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	It("persists an entry without a change set", func() {
		actorID := int64(10)
		entry := audit.NewLog(1, &actorID, "payroll.run.created", "PayrollRun", 7, nil)

		Expect(db.Create(entry).Error).NotTo(HaveOccurred())

		var fetched audit.Log
		Expect(db.First(&fetched, entry.ID).Error).NotTo(HaveOccurred())
		Expect(fetched.Action).To(Equal("payroll.run.created"))
		Expect(fetched.CreatedAt).NotTo(BeZero())
	})

	It("persists and reloads the change set", func() {
		entry := audit.NewLog(1, nil, "payroll.run.approved", "PayrollRun", 7,
			audit.Changes{"status": "APPROVED"})

		Expect(db.Create(entry).Error).NotTo(HaveOccurred())

		var fetched audit.Log
		Expect(db.First(&fetched, entry.ID).Error).NotTo(HaveOccurred())
		Expect(fetched.Changes).To(HaveKeyWithValue("status", "APPROVED"))
	})
})
