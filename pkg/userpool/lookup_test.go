package userpool_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/redhat-data-and-ai/userpool/pkg/store"
	"github.com/redhat-data-and-ai/userpool/pkg/userpool"
)

const (
	username = "1"
	email    = "example@example.com"
	phone    = "0411000111"
)

var _ = Describe("User lookup", func() {
	var (
		ctx context.Context
		dir string
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		dir, err = os.MkdirTemp("", "userpool-lookup-")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)
	})

	openPool := func(attrs ...userpool.UsernameAttribute) *userpool.Pool {
		p, err := userpool.New(ctx, userpool.Options{UsernameAttributes: attrs}, store.NewFileFactory(dir))
		Expect(err).NotTo(HaveOccurred())

		Expect(p.SaveUser(ctx, userpool.User{
			Username:   username,
			Password:   "hunter2",
			UserStatus: userpool.UserStatusConfirmed,
			Attributes: []userpool.Attribute{
				{Name: "email", Value: email},
				{Name: "phone_number", Value: phone},
			},
			Enabled: true,
		})).To(Succeed())
		return p
	}

	DescribeTable("identifier visibility by username attributes",
		func(attrs []userpool.UsernameAttribute, byUsername, byEmail, byPhone bool) {
			p := openPool(attrs...)

			for identifier, visible := range map[string]bool{
				username: byUsername,
				email:    byEmail,
				phone:    byPhone,
			} {
				user, err := p.GetUserByUsername(ctx, identifier)
				Expect(err).NotTo(HaveOccurred())
				if visible {
					Expect(user).NotTo(BeNil(), "identifier %q", identifier)
					Expect(user.Username).To(Equal(username))
				} else {
					Expect(user).To(BeNil(), "identifier %q", identifier)
				}
			}
		},
		Entry("no username attributes", []userpool.UsernameAttribute{}, true, false, false),
		Entry("email", []userpool.UsernameAttribute{userpool.AttributeEmail}, true, true, false),
		Entry("phone_number", []userpool.UsernameAttribute{userpool.AttributePhoneNumber}, true, false, true),
		Entry("email and phone_number",
			[]userpool.UsernameAttribute{userpool.AttributeEmail, userpool.AttributePhoneNumber}, true, true, true),
	)

	Context("when the pool is reopened", func() {
		It("keeps users saved by the previous handle", func() {
			openPool(userpool.AttributeEmail)

			reopened, err := userpool.New(ctx, userpool.Options{
				UsernameAttributes: []userpool.UsernameAttribute{userpool.AttributeEmail},
			}, store.NewFileFactory(dir))
			Expect(err).NotTo(HaveOccurred())

			user, err := reopened.GetUserByUsername(ctx, email)
			Expect(err).NotTo(HaveOccurred())
			Expect(user).NotTo(BeNil())
			Expect(user.Attributes).To(ContainElement(userpool.Attribute{Name: "sub", Value: username}))
		})

		It("writes to a single document per pool id", func() {
			openPool()

			entries, err := os.ReadDir(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(filepath.Join(dir, entries[0].Name())).To(BeARegularFile())
			Expect(entries[0].Name()).To(Equal(userpool.DefaultPoolID + ".json"))
		})
	})
})
