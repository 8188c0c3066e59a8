package payment

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	BeforeEach(func() {
		db = newMockDB()
		service = NewServiceWithDeps(db, newMockScanner(), newMockStorage(), &mockIDGenerator{}, &mockTimeSource{})
		auth = BasicAuth{}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleIndex", func() {
		It("should return the HTML interface", func() {
			resp, err := http.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("UPI Tracker"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
			server = NewServerWithMux(service, auth, http.NewServeMux())
			setupServer()
		})

		When("credentials are missing", func() {
			It("should return status Unauthorized", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/cases")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				resp.Body.Close()
			})
		})

		When("credentials are correct", func() {
			It("should return status OK", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/cases", nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:secret")))
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
			})
		})

		When("credentials are wrong", func() {
			It("should return status Unauthorized", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/cases", nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:wrong")))
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				resp.Body.Close()
			})
		})
	})

	Describe("handleCreateCase", func() {
		When("the request is valid", func() {
			It("should create the case", func() {
				body := bytes.NewBufferString(`{"name": "March reconciliation", "description": "Vendor payouts"}`)
				resp, err := http.Post(ghttpServer.URL()+"/api/cases", "application/json", body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var c Case
				Expect(json.NewDecoder(resp.Body).Decode(&c)).NotTo(HaveOccurred())
				Expect(c.Name).To(Equal("March reconciliation"))
				Expect(db.cases).To(HaveKey(c.ID))
			})
		})

		When("the name is missing", func() {
			It("should return status Bad Request with a JSON error", func() {
				body := bytes.NewBufferString(`{"description": "no name"}`)
				resp, err := http.Post(ghttpServer.URL()+"/api/cases", "application/json", body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var errResp map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&errResp)).NotTo(HaveOccurred())
				Expect(errResp).To(HaveKey("error"))
			})
		})
	})

	Describe("handleGetCase", func() {
		When("the case exists", func() {
			BeforeEach(func() {
				db.cases["case-1"] = &Case{ID: "case-1", Name: "Test case"}
				db.payments["pay-1"] = &Payment{ID: "pay-1", CaseID: "case-1", Status: "Success"}
				db.notes["note-1"] = &Note{ID: "note-1", CaseID: "case-1", Text: "check this"}
			})

			It("should return the case with payments and notes", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/cases/case-1")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var detail struct {
					Case     *Case      `json:"case"`
					Payments []*Payment `json:"payments"`
					Notes    []*Note    `json:"notes"`
				}
				Expect(json.NewDecoder(resp.Body).Decode(&detail)).NotTo(HaveOccurred())
				Expect(detail.Case.ID).To(Equal("case-1"))
				Expect(detail.Payments).To(HaveLen(1))
				Expect(detail.Notes).To(HaveLen(1))
			})
		})

		When("the case does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/cases/missing")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleUploadReceipt", func() {
		var uploadBody *bytes.Buffer
		var uploadContentType string

		buildUpload := func(fieldName, filename string) {
			uploadBody = &bytes.Buffer{}
			writer := multipart.NewWriter(uploadBody)
			part, err := writer.CreateFormFile(fieldName, filename)
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write([]byte("fake image data"))
			Expect(err).NotTo(HaveOccurred())
			Expect(writer.Close()).NotTo(HaveOccurred())
			uploadContentType = writer.FormDataContentType()
		}

		BeforeEach(func() {
			db.cases["case-1"] = &Case{ID: "case-1", Name: "Test case"}
		})

		When("the upload is valid", func() {
			BeforeEach(func() {
				buildUpload("file", "receipt.jpg")
			})

			It("should create the payment with extracted fields", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/cases/case-1/payments", uploadContentType, uploadBody)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var p Payment
				Expect(json.NewDecoder(resp.Body).Decode(&p)).NotTo(HaveOccurred())
				Expect(p.CaseID).To(Equal("case-1"))
				Expect(p.PayeeName).To(Equal("Sharma Stores"))
				Expect(p.Channel).To(Equal("PhonePe"))
				Expect(p.ReviewFields).To(ContainElement("payee_vpa"))
			})
		})

		When("no file field is sent", func() {
			BeforeEach(func() {
				buildUpload("wrong", "receipt.jpg")
			})

			It("should return status Bad Request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/cases/case-1/payments", uploadContentType, uploadBody)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})

		When("the case does not exist", func() {
			BeforeEach(func() {
				buildUpload("file", "receipt.jpg")
			})

			It("should return status Bad Request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/cases/missing/payments", uploadContentType, uploadBody)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})
	})

	Describe("handleUpdatePayment", func() {
		BeforeEach(func() {
			db.payments["pay-1"] = &Payment{
				ID:           "pay-1",
				CaseID:       "case-1",
				Status:       "Unknown",
				ReviewFields: []string{"amount"},
			}
		})

		When("the edit is valid", func() {
			It("should apply it and clear the review flag", func() {
				body := bytes.NewBufferString(`{"amount": "250.00", "remarks": "fixed by hand"}`)
				req, err := http.NewRequest("PATCH", ghttpServer.URL()+"/api/payments/pay-1", body)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var p Payment
				Expect(json.NewDecoder(resp.Body).Decode(&p)).NotTo(HaveOccurred())
				Expect(p.Amount.String()).To(Equal("250.00"))
				Expect(p.ReviewFields).To(BeEmpty())
				Expect(p.Remarks).To(Equal("fixed by hand"))
			})
		})

		When("the edit is invalid", func() {
			It("should return status Bad Request", func() {
				body := bytes.NewBufferString(`{"status": "Reversed"}`)
				req, err := http.NewRequest("PATCH", ghttpServer.URL()+"/api/payments/pay-1", body)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})
	})

	Describe("handleExportCase", func() {
		BeforeEach(func() {
			db.cases["case-1"] = &Case{ID: "case-1", Name: "Test case"}
			db.payments["pay-1"] = &Payment{ID: "pay-1", CaseID: "case-1", Channel: "UPI", Status: "Success"}
		})

		It("should return CSV with an attachment disposition", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/cases/case-1/export.csv")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/csv; charset=utf-8"))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("attachment"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimSpace(string(body)), "\n")
			Expect(lines).To(HaveLen(2))
			Expect(lines[0]).To(ContainSubstring("UTR"))
		})
	})

	Describe("handleRescanPayment", func() {
		BeforeEach(func() {
			db.payments["pay-1"] = &Payment{ID: "pay-1", CaseID: "case-1", Filename: "pay-1_a.jpg", ContentType: "image/jpeg"}
			storage := service.storage.(*mockStorage)
			storage.files["pay-1_a.jpg"] = []byte("image")
		})

		It("should re-extract the payment", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/payments/pay-1/rescan", "application/json", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var p Payment
			Expect(json.NewDecoder(resp.Body).Decode(&p)).NotTo(HaveOccurred())
			Expect(p.PayeeName).To(Equal("Sharma Stores"))
		})
	})

	Describe("handleDeletePayment", func() {
		BeforeEach(func() {
			db.payments["pay-1"] = &Payment{ID: "pay-1", CaseID: "case-1", Filename: "pay-1_a.jpg"}
			storage := service.storage.(*mockStorage)
			storage.files["pay-1_a.jpg"] = []byte("image")
		})

		It("should return status No Content and remove the payment", func() {
			req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/payments/pay-1", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			resp.Body.Close()
			Expect(db.payments).To(BeEmpty())
		})
	})

	Describe("handleAddNote", func() {
		BeforeEach(func() {
			db.cases["case-1"] = &Case{ID: "case-1", Name: "Test case"}
		})

		It("should attach the note to the case", func() {
			body := bytes.NewBufferString(`{"text": "spoke to the bank"}`)
			resp, err := http.Post(ghttpServer.URL()+"/api/cases/case-1/notes", "application/json", body)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var note Note
			Expect(json.NewDecoder(resp.Body).Decode(&note)).NotTo(HaveOccurred())
			Expect(note.CaseID).To(Equal("case-1"))
			Expect(note.Text).To(Equal("spoke to the bank"))
		})
	})

	Describe("handleGetPaymentFile", func() {
		BeforeEach(func() {
			db.payments["pay-1"] = &Payment{ID: "pay-1", Filename: "pay-1_a.jpg", ContentType: "image/jpeg"}
			storage := service.storage.(*mockStorage)
			storage.files["pay-1_a.jpg"] = []byte("file data")
		})

		It("should return the file with its content type", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/payments/pay-1/file")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/jpeg"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("file data"))
		})
	})
})
