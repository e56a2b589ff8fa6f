package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode"

	"reelhub/internal/service"
	"reelhub/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
)

var tagPool = []string{
	"dance", "comedy", "music", "travel", "food", "pets", "sports",
	"diy", "fashion", "gaming", "fitness", "art", "science", "cars",
}

// Factory builds valid service inputs from fake data. The same seed always
// yields the same sequence.
type Factory struct {
	faker  *gofakeit.Faker
	rng    *rand.Rand
	bucket string
	seq    int
}

// NewFactory returns a factory seeded with seed, or with the clock when seed
// is zero. bucket names the storage bucket used in generated asset refs.
func NewFactory(seed int64, bucket string) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if bucket == "" {
		bucket = "reelhub-dev"
	}
	return &Factory{
		faker: gofakeit.New(seed),
		// #nosec G404: acceptable for seeding
		rng:    rand.New(rand.NewSource(seed)),
		bucket: bucket,
	}
}

// UserInput generates a user with a unique name and email.
func (f *Factory) UserInput(overrides ...func(*service.CreateUserInput)) service.CreateUserInput {
	f.seq++
	name := userName(f.faker.Username(), f.seq)
	in := service.CreateUserInput{
		Name:      name,
		Email:     fmt.Sprintf("%s@%s", name, f.faker.DomainName()),
		Bio:       truncate(f.faker.Sentence(10), validation.MaxDescriptionLen),
		AvatarURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
	}
	for _, override := range overrides {
		override(&in)
	}
	return in
}

// PostInput generates a video post for ownerID.
func (f *Factory) PostInput(ownerID uint, overrides ...func(*service.CreatePostInput)) service.CreatePostInput {
	id := f.faker.UUID()
	in := service.CreatePostInput{
		UserID:       ownerID,
		Title:        title(f.faker.Sentence(4)),
		Description:  truncate(f.faker.Sentence(12), validation.MaxDescriptionLen),
		VideoURL:     fmt.Sprintf("gs://%s/videos/%s.mp4", f.bucket, id),
		ThumbnailURL: fmt.Sprintf("gs://%s/thumbnails/%s.jpg", f.bucket, id),
		DurationSec:  5 + f.rng.Intn(176),
		Tags:         f.tags(),
	}
	for _, override := range overrides {
		override(&in)
	}
	return in
}

// CommentText generates comment or reply text.
func (f *Factory) CommentText() string {
	return truncate(f.faker.Sentence(4+f.rng.Intn(9)), validation.MaxCommentLen)
}

func (f *Factory) tags() []string {
	n := 1 + f.rng.Intn(3)
	out := make([]string, 0, n)
	for _, i := range f.rng.Perm(len(tagPool))[:n] {
		out = append(out, "#"+tagPool[i])
	}
	return out
}

// userName reduces a fake username to the allowed alphabet and appends seq
// so names never collide.
func userName(base string, seq int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
		}
	}
	suffix := fmt.Sprintf("_%d", seq)
	name := truncate(b.String(), validation.MaxUserNameLen-len(suffix))
	if name == "" {
		name = "user"
	}
	return name + suffix
}

func title(sentence string) string {
	t := strings.TrimSuffix(strings.TrimSpace(sentence), ".")
	t = truncate(t, validation.MaxTitleLen)
	if len(t) < validation.MinTitleLen {
		t = "clip " + t
	}
	return t
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
