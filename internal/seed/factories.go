// Package seed provides helpers to create demo data for the application
// database. Everything goes through the coordinator, so seeded data obeys
// the same uniqueness and counter rules as API traffic.
package seed

import (
	"fmt"

	"postbook/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// Factory builds coordinator inputs populated with fake data.
type Factory struct {
	faker     *gofakeit.Faker
	maxImages int
}

// NewFactory creates a Factory. A zero seed gives different data on every run.
func NewFactory(seed int64, maxImages int) *Factory {
	if maxImages < 0 {
		maxImages = 0
	}
	return &Factory{faker: gofakeit.New(seed), maxImages: maxImages}
}

// BuildAccount returns a CreateAccountInput. Contact numbers keep a leading
// zero the way national numbers are written.
func (f *Factory) BuildAccount(overrides ...func(*service.CreateAccountInput)) service.CreateAccountInput {
	in := service.CreateAccountInput{
		Name:          f.faker.Name(),
		ContactNumber: f.ContactNumber(),
		Location:      fmt.Sprintf("%s, %s", f.faker.City(), f.faker.Country()),
	}
	for _, override := range overrides {
		override(&in)
	}
	return in
}

// ContactNumber returns a fresh 11 digit contact number starting with 0.
func (f *Factory) ContactNumber() string {
	return "0" + f.faker.Phone()
}

// BuildPost returns a CreatePostInput for accountID with up to maxImages
// image references.
func (f *Factory) BuildPost(accountID uint, overrides ...func(*service.CreatePostInput)) service.CreatePostInput {
	in := service.CreatePostInput{
		AccountID:   accountID,
		Title:       f.faker.Sentence(5),
		Description: f.faker.Paragraph(1, 3, 12, "\n"),
		Images:      f.images(),
	}
	for _, override := range overrides {
		override(&in)
	}
	return in
}

func (f *Factory) images() []string {
	if f.maxImages == 0 {
		return nil
	}
	n := f.faker.Number(0, f.maxImages)
	images := make([]string, 0, n)
	for i := 0; i < n; i++ {
		images = append(images, fmt.Sprintf("https://picsum.photos/seed/%s/800/800", uuid.NewString()))
	}
	return images
}
