// Package seed provides helpers to create demo data for development and
// tests. Credits are only ever granted through the ledger so seeded
// balances always reconcile.
package seed

import (
	"fmt"
	"time"

	"creditfeed/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db     *gorm.DB
	faker  *gofakeit.Faker
	opts   Options
	hashed string
	now    time.Time
}

// NewFactory creates a Factory bound to db. A zero opts.RandSeed seeds from the clock.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{db: db, faker: gofakeit.New(seed), opts: opts, now: time.Now()}
}

func (f *Factory) password() (string, error) {
	if f.hashed != "" {
		return f.hashed, nil
	}
	if f.opts.SkipBcrypt {
		f.hashed = DefaultPassword
		return f.hashed, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	f.hashed = string(hashed)
	return f.hashed, nil
}

// CreateUser persists a user with a generated identity and the default balance.
// About half of the generated users get a complete profile.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	password, err := f.password()
	if err != nil {
		return nil, err
	}

	handle := fmt.Sprintf("%s%d", f.faker.Username(), f.faker.Number(100, 999))
	if len(handle) > 30 {
		handle = handle[len(handle)-30:]
	}
	user := &models.User{
		Username: handle,
		Email:    models.NormalizeEmail(fmt.Sprintf("%s@%s", handle, f.faker.DomainName())),
		Password: password,
		Role:     models.RoleUser,
		Credits:  models.DefaultCredits,
	}
	if f.faker.Bool() {
		user.Profile = models.Profile{
			Name:      f.faker.Name(),
			Bio:       f.faker.Sentence(10),
			AvatarURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
		}
	}

	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildItem constructs an unsaved content item for source.
func (f *Factory) BuildItem(source models.Source, n int) models.ContentItem {
	author := f.faker.Username()
	originalID := fmt.Sprintf("seed_%s_%d", source, n)
	published := f.now.Add(-time.Duration(f.faker.Number(0, 72*60)) * time.Minute)

	item := models.ContentItem{
		Source:      source,
		OriginalID:  originalID,
		Author:      author,
		PublishedAt: published,
	}
	switch source {
	case models.SourceTwitter:
		item.Title = fmt.Sprintf("Tweet by %s (@%s)", f.faker.Name(), author)
		item.Content = f.faker.HackerPhrase()
		item.URL = fmt.Sprintf("https://twitter.com/%s/status/%s", author, originalID)
		item.ImageURL = fmt.Sprintf("https://i.pravatar.cc/48?u=%s", author)
	default:
		item.Title = f.faker.Sentence(7)
		item.Content = f.faker.Paragraph(1, 3, 10, " ")
		item.URL = f.faker.URL()
		if n%3 == 0 {
			item.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/600", originalID)
		}
	}
	return item
}

// ReportReason returns a plausible moderation reason.
func (f *Factory) ReportReason() string {
	return f.faker.RandomString([]string{
		"Spam or misleading",
		"Off topic",
		"Harassment",
		"Broken link",
		"Duplicate post",
	})
}

// Intn returns a pseudo-random int in [0, n).
func (f *Factory) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.Number(0, n-1)
}
