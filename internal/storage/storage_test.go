package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want ObjectRef
	}{
		{"gs url", "gs://reels/videos/1.mp4", ObjectRef{Bucket: "reels", Object: "videos/1.mp4"}},
		{"public url", "https://storage.googleapis.com/reels/thumbs/1.jpg", ObjectRef{Bucket: "reels", Object: "thumbs/1.jpg"}},
		{"bare object", "/avatars/9.png", ObjectRef{Bucket: "default", Object: "avatars/9.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRef(tt.ref, "default")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRef_Errors(t *testing.T) {
	_, err := ParseRef("https://cdn.example.com/v.mp4", "reels")
	assert.ErrorIs(t, err, ErrForeignAsset)

	_, err = ParseRef("", "reels")
	assert.Error(t, err)

	_, err = ParseRef("videos/1.mp4", "")
	assert.Error(t, err)

	_, err = ParseRef("gs://reels", "")
	assert.Error(t, err)
}

func TestNoop_Delete(t *testing.T) {
	var s AssetStore = Noop{}
	assert.NoError(t, s.Delete(context.Background(), "gs://reels/v.mp4"))
}
