package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseSchoolStore(t *testing.T, store Store) {
	ctx := context.Background()
	created := time.Now().UTC().Truncate(time.Second)

	names := []string{"Zion Charter", "austin High", "Brook Valley"}
	var first School
	for i, name := range names {
		s, err := store.Create(ctx, School{
			Name:      name,
			Address:   "1 Main Street",
			City:      "Austin",
			State:     "Texas",
			Contact:   "5551234567",
			EmailID:   "office@example.edu",
			CreatedAt: created,
		})
		require.NoError(t, err)
		assert.NotZero(t, s.ID)
		if i == 0 {
			first = s
		}
	}

	withImage, err := store.Create(ctx, School{Name: "Art Academy", City: "Dallas", State: "Texas", Image: "/images/x.png", CreatedAt: created})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, withImage.ID)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)

	got := make([]string, 0, len(list))
	for _, s := range list {
		got = append(got, s.Name)
	}
	assert.Equal(t, []string{"Art Academy", "austin High", "Brook Valley", "Zion Charter"}, got)
	assert.Equal(t, "/images/x.png", list[0].Image)
	assert.Empty(t, list[1].Image)
	assert.True(t, created.Equal(list[1].CreatedAt))
}

func TestMemorySchoolStore(t *testing.T) {
	exerciseSchoolStore(t, NewMemoryStore())
}

func TestBoltSchoolStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schools.db")
	store, err := OpenBoltStore(path)
	require.NoError(t, err)
	exerciseSchoolStore(t, store)
	require.NoError(t, store.Close())

	reopened, err := OpenBoltStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	list, err := reopened.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 4)

	next, err := reopened.Create(context.Background(), School{Name: "New"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), next.ID)
}

func TestPostgresSchoolStore(t *testing.T) {
	dsn := os.Getenv("SCHOOLGATE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SCHOOLGATE_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := OpenPostgresStore(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.ExecContext(ctx, `TRUNCATE schools RESTART IDENTITY`)
	require.NoError(t, err)
	exerciseSchoolStore(t, store)
}
