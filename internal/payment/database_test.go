package payment

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SavePayment", func() {
		var (
			payment *Payment
			err     error
		)

		BeforeEach(func() {
			payment = &Payment{
				ID:           "pay-1",
				CaseID:       "case-1",
				Channel:      "PhonePe",
				PayeeName:    "Sharma Stores",
				Amount:       decimal.RequireFromString("1250.50"),
				TxnTime:      time.Date(2024, 3, 15, 10, 22, 0, 0, time.UTC),
				UTR:          "405123456789",
				Status:       "Success",
				ReviewFields: []string{"payee_vpa"},
				Candidates:   map[string][]string{"amount": {"250.00", "5000.00"}},
				Filename:     "pay-1_receipt.jpg",
				ContentType:  "image/jpeg",
				CreatedAt:    time.Now(),
				UpdatedAt:    time.Now(),
			}
		})

		JustBeforeEach(func() {
			err = db.SavePayment(payment)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should round-trip the payment intact", func() {
				saved, getErr := db.GetPayment("pay-1")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.PayeeName).To(Equal("Sharma Stores"))
				Expect(saved.Amount).To(Equal(decimal.RequireFromString("1250.50")))
				Expect(saved.TxnTime).To(Equal(payment.TxnTime))
				Expect(saved.ReviewFields).To(Equal([]string{"payee_vpa"}))
				Expect(saved.Candidates).To(HaveKeyWithValue("amount", []string{"250.00", "5000.00"}))
			})
		})
	})

	Describe("GetPayment", func() {
		When("payment does not exist", func() {
			It("returns the error", func() {
				_, err := db.GetPayment("nonexistent")
				Expect(err).To(MatchError(errors.New("payment not found: nonexistent")))
			})
		})
	})

	Describe("ListPayments", func() {
		var (
			payments []*Payment
			err      error
		)

		JustBeforeEach(func() {
			payments, err = db.ListPayments("case-1")
		})

		When("payments from several cases exist", func() {
			BeforeEach(func() {
				Expect(db.SavePayment(&Payment{ID: "pay-1", CaseID: "case-1"})).NotTo(HaveOccurred())
				Expect(db.SavePayment(&Payment{ID: "pay-2", CaseID: "case-2"})).NotTo(HaveOccurred())
				Expect(db.SavePayment(&Payment{ID: "pay-3", CaseID: "case-1"})).NotTo(HaveOccurred())
			})

			It("should return only the requested case's payments", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(payments).To(HaveLen(2))
				for _, p := range payments {
					Expect(p.CaseID).To(Equal("case-1"))
				}
			})
		})

		When("no payments exist", func() {
			It("should return an empty list", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(payments).To(BeEmpty())
			})
		})
	})

	Describe("DeletePayment", func() {
		When("payment exists", func() {
			BeforeEach(func() {
				Expect(db.SavePayment(&Payment{ID: "pay-1", CaseID: "case-1"})).NotTo(HaveOccurred())
			})

			It("should remove it", func() {
				Expect(db.DeletePayment("pay-1")).NotTo(HaveOccurred())
				_, getErr := db.GetPayment("pay-1")
				Expect(getErr).To(HaveOccurred())
			})
		})

		When("payment does not exist", func() {
			It("should not return an error", func() {
				Expect(db.DeletePayment("nonexistent")).NotTo(HaveOccurred())
			})
		})
	})

	Describe("SaveCase", func() {
		It("should round-trip a case", func() {
			c := &Case{
				ID:          "case-1",
				Name:        "March reconciliation",
				Description: "Vendor payouts",
				CreatedAt:   time.Now(),
				UpdatedAt:   time.Now(),
			}
			Expect(db.SaveCase(c)).NotTo(HaveOccurred())

			saved, err := db.GetCase("case-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Name).To(Equal("March reconciliation"))
			Expect(saved.Description).To(Equal("Vendor payouts"))
		})
	})

	Describe("GetCase", func() {
		When("case does not exist", func() {
			It("returns the error", func() {
				_, err := db.GetCase("nonexistent")
				Expect(err).To(MatchError(errors.New("case not found: nonexistent")))
			})
		})
	})

	Describe("ListCases", func() {
		When("cases exist", func() {
			BeforeEach(func() {
				Expect(db.SaveCase(&Case{ID: "case-1", Name: "One"})).NotTo(HaveOccurred())
				Expect(db.SaveCase(&Case{ID: "case-2", Name: "Two"})).NotTo(HaveOccurred())
			})

			It("should return all cases", func() {
				cases, err := db.ListCases()
				Expect(err).NotTo(HaveOccurred())
				Expect(cases).To(HaveLen(2))
			})
		})

		When("no cases exist", func() {
			It("should return an empty list", func() {
				cases, err := db.ListCases()
				Expect(err).NotTo(HaveOccurred())
				Expect(cases).To(BeEmpty())
			})
		})
	})

	Describe("Notes", func() {
		BeforeEach(func() {
			Expect(db.SaveNote(&Note{ID: "note-1", CaseID: "case-1", Text: "first"})).NotTo(HaveOccurred())
			Expect(db.SaveNote(&Note{ID: "note-2", CaseID: "case-2", Text: "other"})).NotTo(HaveOccurred())
		})

		It("lists only the requested case's notes", func() {
			notes, err := db.ListNotes("case-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(notes).To(HaveLen(1))
			Expect(notes[0].Text).To(Equal("first"))
		})

		It("deletes a note", func() {
			Expect(db.DeleteNote("note-1")).NotTo(HaveOccurred())
			notes, err := db.ListNotes("case-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(notes).To(BeEmpty())
		})
	})

	Describe("Close", func() {
		It("should not return an error", func() {
			Expect(db.Close()).NotTo(HaveOccurred())
		})
	})
})
