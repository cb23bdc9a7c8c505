package directory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubImages struct {
	names   []string
	removed []string
	err     error
}

func (s *stubImages) Remove(_ context.Context, url string) error {
	s.removed = append(s.removed, url)
	return nil
}

type failingStore struct {
	*MemoryStore
}

func (failingStore) Create(context.Context, School) (School, error) {
	return School{}, errors.New("disk full")
}

func (s *stubImages) Put(_ context.Context, filename string, body io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	_, _ = io.ReadAll(body)
	s.names = append(s.names, filename)
	return "/images/" + filename, nil
}

func TestRegistryAddAndBrowse(t *testing.T) {
	images := &stubImages{}
	reg := NewRegistry(NewMemoryStore(), images)
	ctx := context.Background()

	in := validSchool()
	created, err := reg.Add(ctx, in, &Upload{Filename: "front.png", Body: strings.NewReader("png")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "/images/front.png", created.Image)
	assert.False(t, created.CreatedAt.IsZero())

	other := validSchool()
	other.Name = "Portland Prep"
	other.City = "Portland"
	_, err = reg.Add(ctx, other, nil)
	require.NoError(t, err)

	listing, err := reg.Browse(ctx, Query{City: "Portland"})
	require.NoError(t, err)
	assert.Equal(t, 2, listing.Total)
	assert.Equal(t, 1, listing.Matched)
	require.Len(t, listing.Schools, 1)
	assert.Equal(t, "Portland Prep", listing.Schools[0].Name)
	assert.Equal(t, []string{"Portland", "Springfield"}, listing.Cities)
	assert.Equal(t, []string{"Oregon"}, listing.States)
}

func TestRegistryAddRejectsInvalidBeforeUpload(t *testing.T) {
	images := &stubImages{}
	reg := NewRegistry(NewMemoryStore(), images)

	in := validSchool()
	in.Contact = "abc"
	_, err := reg.Add(context.Background(), in, &Upload{Filename: "a.png", Body: strings.NewReader("x")})
	require.ErrorIs(t, err, ErrInvalidSchool)
	assert.Empty(t, images.names)
}

func TestRegistryAddUploadFailure(t *testing.T) {
	store := NewMemoryStore()
	reg := NewRegistry(store, &stubImages{err: ErrUnsupportedImage})

	_, err := reg.Add(context.Background(), validSchool(), &Upload{Filename: "a.bmp", Body: strings.NewReader("x")})
	require.True(t, errors.Is(err, ErrUnsupportedImage))

	list, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRegistryAddStoreFailureRemovesImage(t *testing.T) {
	images := &stubImages{}
	reg := NewRegistry(failingStore{NewMemoryStore()}, images)

	_, err := reg.Add(context.Background(), validSchool(), &Upload{Filename: "front.png", Body: strings.NewReader("png")})
	require.EqualError(t, err, "disk full")
	assert.Equal(t, []string{"front.png"}, images.names)
	assert.Equal(t, []string{"/images/front.png"}, images.removed)
}
